package model

import (
	"time"

	"github.com/google/uuid"
)

type AgreementStatus string

const (
	AgreementStatusActive    AgreementStatus = "ACTIVE"
	AgreementStatusCancelled AgreementStatus = "CANCELLED"
	AgreementStatusExpired   AgreementStatus = "EXPIRED"
	AgreementStatusCompleted AgreementStatus = "COMPLETED"
)

type SignatureStatus string

const (
	SignaturePending  SignatureStatus = "PENDING_SIGNATURE"
	SignatureReceived SignatureStatus = "RECEIVED"
	SignatureExpired  SignatureStatus = "EXPIRED"
)

type PaymentMethod string

const (
	PaymentMethodInstallments     PaymentMethod = "INSTALLMENTS"
	PaymentMethodFundDeduction    PaymentMethod = "FUND_DEDUCTION"
	PaymentMethodBenefitsTransfer PaymentMethod = "BENEFITS_TRANSFER"
)

// SignatureDeadlineDays is the window a customer has to sign before the
// agreement expires and stops generating reminders.
const SignatureDeadlineDays = 30

// DebtAgreement is a structured repayment arrangement for a policy's
// outstanding balance. SignatureStatus is nil on legacy rows created before
// the signature workflow existed.
type DebtAgreement struct {
	ID                     uuid.UUID
	CustomerID             uuid.UUID
	PolicyNumber           string
	OutstandingAmount      float64
	PaymentMethod          PaymentMethod
	DownPayment            float64
	TermMonths             int
	InstallmentAmount      float64
	StartDate              time.Time
	EndDate                time.Time
	Status                 AgreementStatus
	SignatureStatus        *SignatureStatus
	SignatureDeadline      time.Time
	SignatureReceivedDate  *time.Time
	SignatureReminderCount int
	CreatedByAgentID       uuid.UUID
	CreatedAt              time.Time
}

// SignaturePending reports whether the agreement is still waiting on the
// customer's signature. Legacy rows with no signature status are not pending.
func (a *DebtAgreement) SignaturePendingNow() bool {
	return a.SignatureStatus != nil && *a.SignatureStatus == SignaturePending
}

// Signed reports whether the signature workflow completed for this agreement.
func (a *DebtAgreement) Signed() bool {
	return a.SignatureStatus != nil && *a.SignatureStatus == SignatureReceived
}

// Legacy reports whether the agreement predates the signature workflow.
func (a *DebtAgreement) Legacy() bool {
	return a.SignatureStatus == nil
}
