package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arvale/aod-service/internal/model"
	"github.com/arvale/aod-service/internal/service"
)

const agreementColumns = `
	id,
	customer_id,
	policy_number,
	outstanding_amount,
	payment_method,
	down_payment,
	term_months,
	installment_amount,
	start_date,
	end_date,
	status,
	signature_status,
	signature_deadline,
	signature_received_date,
	signature_reminder_count,
	created_by_agent_id,
	created_at
`

type AgreementRepository struct {
	db *gorm.DB
}

func NewAgreementRepository(db *gorm.DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

func (r *AgreementRepository) Get(ctx context.Context, id uuid.UUID) (*model.DebtAgreement, error) {
	var agreement model.DebtAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM debt_agreements
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&agreement).Error
	if err != nil {
		return nil, err
	}
	if agreement.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: agreement %s", service.ErrNotFound, id)
	}
	return &agreement, nil
}

// Create persists the agreement and its installment schedule in one
// transaction.
func (r *AgreementRepository) Create(ctx context.Context, a model.DebtAgreement, installments []model.Installment) (*model.DebtAgreement, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			INSERT INTO debt_agreements (
				id,
				customer_id,
				policy_number,
				outstanding_amount,
				payment_method,
				down_payment,
				term_months,
				installment_amount,
				start_date,
				end_date,
				status,
				signature_status,
				signature_deadline,
				signature_reminder_count,
				created_by_agent_id,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			a.ID,
			a.CustomerID,
			a.PolicyNumber,
			a.OutstandingAmount,
			a.PaymentMethod,
			a.DownPayment,
			a.TermMonths,
			a.InstallmentAmount,
			a.StartDate,
			a.EndDate,
			a.Status,
			a.SignatureStatus,
			a.SignatureDeadline,
			a.SignatureReminderCount,
			a.CreatedByAgentID,
			a.CreatedAt,
		).Error; err != nil {
			return err
		}

		for _, inst := range installments {
			if err := tx.Exec(`
				INSERT INTO installments (
					id,
					agreement_id,
					sequence,
					due_date,
					amount,
					status,
					reminder_sent_count,
					created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				inst.ID,
				inst.AgreementID,
				inst.Sequence,
				inst.DueDate,
				inst.Amount,
				inst.Status,
				inst.ReminderSentCount,
				inst.CreatedAt,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	saved := a
	return &saved, nil
}

func (r *AgreementRepository) Update(ctx context.Context, a *model.DebtAgreement) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE debt_agreements
		SET
			outstanding_amount = ?,
			installment_amount = ?,
			start_date = ?,
			end_date = ?,
			status = ?,
			signature_status = ?,
			signature_received_date = ?,
			signature_reminder_count = ?
		WHERE id = ?
	`,
		a.OutstandingAmount,
		a.InstallmentAmount,
		a.StartDate,
		a.EndDate,
		a.Status,
		a.SignatureStatus,
		a.SignatureReceivedDate,
		a.SignatureReminderCount,
		a.ID,
	).Error
}

// ActiveByPolicy returns the active agreement on a policy, or nil when the
// policy has none.
func (r *AgreementRepository) ActiveByPolicy(ctx context.Context, policyNumber string) (*model.DebtAgreement, error) {
	var agreement model.DebtAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM debt_agreements
		WHERE policy_number = ? AND status = 'ACTIVE'
		ORDER BY created_at DESC
		LIMIT 1
	`, policyNumber).Scan(&agreement).Error
	if err != nil {
		return nil, err
	}
	if agreement.ID == uuid.Nil {
		return nil, nil
	}
	return &agreement, nil
}

func (r *AgreementRepository) ListActive(ctx context.Context) ([]model.DebtAgreement, error) {
	var agreements []model.DebtAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM debt_agreements
		WHERE status = 'ACTIVE'
		ORDER BY created_at
	`).Scan(&agreements).Error
	if err != nil {
		return nil, err
	}
	return agreements, nil
}

func (r *AgreementRepository) ListPendingSignature(ctx context.Context) ([]model.DebtAgreement, error) {
	var agreements []model.DebtAgreement
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+agreementColumns+`
		FROM debt_agreements
		WHERE status = 'ACTIVE' AND signature_status = 'PENDING_SIGNATURE'
		ORDER BY created_at
	`).Scan(&agreements).Error
	if err != nil {
		return nil, err
	}
	return agreements, nil
}
