package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arvale/aod-service/internal/model"
)

// Store interfaces are defined on the consumer side so services can be tested
// against in-memory fakes; internal/repository provides the gorm-backed
// implementations.

type AgreementStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.DebtAgreement, error)
	Create(ctx context.Context, a model.DebtAgreement, installments []model.Installment) (*model.DebtAgreement, error)
	Update(ctx context.Context, a *model.DebtAgreement) error
	ActiveByPolicy(ctx context.Context, policyNumber string) (*model.DebtAgreement, error)
	ListActive(ctx context.Context) ([]model.DebtAgreement, error)
	ListPendingSignature(ctx context.Context) ([]model.DebtAgreement, error)
}

type InstallmentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Installment, error)
	ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]model.Installment, error)
	ListPendingDueWithin(ctx context.Context, from, to time.Time) ([]model.Installment, error)
	UpdateDueDate(ctx context.Context, id uuid.UUID, due time.Time) error
	MarkReminderSent(ctx context.Context, id uuid.UUID, count int, at time.Time) error
	Adopt(ctx context.Context, id, agreementID uuid.UUID) error
}

type CustomerStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	ListAvailable(ctx context.Context) ([]model.Customer, error)
	ListAssigned(ctx context.Context) ([]model.Customer, error)
	Assign(ctx context.Context, customerID, agentID uuid.UUID, at time.Time, priority float64) error
}

type AgentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Agent, error)
	ListActive(ctx context.Context) ([]model.Agent, error)
	IncrementBatchSize(ctx context.Context, id uuid.UUID, by int) error
}

// Notifier delivers a reminder over one channel. Email and SMS are separate
// Notifier values so either can fail independently.
type Notifier interface {
	Send(ctx context.Context, target, content string) error
}
