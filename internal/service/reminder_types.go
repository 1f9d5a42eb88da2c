package service

import (
	"time"

	"github.com/google/uuid"
)

// ReminderKind distinguishes the two cadences sharing the engine.
type ReminderKind string

const (
	ReminderKindPayment   ReminderKind = "PAYMENT"
	ReminderKindSignature ReminderKind = "SIGNATURE"
)

// ItemOutcome is the per-record result of one cadence pass.
type ItemOutcome struct {
	Kind           ReminderKind `json:"kind"`
	RecordID       uuid.UUID    `json:"record_id"`
	ReminderNumber int          `json:"reminder_number,omitempty"`
	Expired        bool         `json:"expired,omitempty"`
	OK             bool         `json:"ok"`
	Error          string       `json:"error,omitempty"`
}

// BatchResult aggregates a cadence run. Per-item failures are recorded here
// and never abort the rest of the batch.
type BatchResult struct {
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Results    []ItemOutcome `json:"results"`
}

func (b *BatchResult) add(o ItemOutcome) {
	if o.OK {
		b.Successful++
	} else {
		b.Failed++
	}
	b.Results = append(b.Results, o)
}

func (b *BatchResult) merge(other BatchResult) {
	b.Successful += other.Successful
	b.Failed += other.Failed
	b.Results = append(b.Results, other.Results...)
}

// PreviewItem describes a reminder that would be sent if the cadence ran now.
type PreviewItem struct {
	Kind           ReminderKind `json:"kind"`
	RecordID       uuid.UUID    `json:"record_id"`
	AgreementID    uuid.UUID    `json:"agreement_id"`
	ReminderNumber int          `json:"reminder_number"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	Amount         float64      `json:"amount,omitempty"`
}
