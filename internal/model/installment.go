package model

import (
	"time"

	"github.com/google/uuid"
)

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
	InstallmentStatusOverdue InstallmentStatus = "OVERDUE"
)

// Installment is one scheduled payment under a debt agreement. AgreementID is
// nullable: imports from the legacy system left some installments without a
// resolvable parent (see the orphan repair heuristic in the reminder service).
type Installment struct {
	ID                 uuid.UUID
	AgreementID        *uuid.UUID
	Sequence           int
	DueDate            time.Time
	Amount             float64
	Status             InstallmentStatus
	ReminderSentCount  int
	LastReminderSentAt *time.Time
	PaymentQRRef       *string
	CreatedAt          time.Time
}

// ScheduleEntry is one line of a generated installment schedule, before it is
// persisted as an Installment.
type ScheduleEntry struct {
	Sequence int
	DueDate  time.Time
	Amount   float64
}
