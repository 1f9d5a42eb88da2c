package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arvale/aod-service/internal/model"
	"github.com/arvale/aod-service/internal/service"
)

const installmentColumns = `
	id,
	agreement_id,
	sequence,
	due_date,
	amount,
	status,
	reminder_sent_count,
	last_reminder_sent_at,
	payment_qr_ref,
	created_at
`

type InstallmentRepository struct {
	db *gorm.DB
}

func NewInstallmentRepository(db *gorm.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

func (r *InstallmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Installment, error) {
	var inst model.Installment
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+installmentColumns+`
		FROM installments
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&inst).Error
	if err != nil {
		return nil, err
	}
	if inst.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: installment %s", service.ErrNotFound, id)
	}
	return &inst, nil
}

func (r *InstallmentRepository) ListByAgreement(ctx context.Context, agreementID uuid.UUID) ([]model.Installment, error) {
	var installments []model.Installment
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+installmentColumns+`
		FROM installments
		WHERE agreement_id = ?
		ORDER BY sequence
	`, agreementID).Scan(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

// ListPendingDueWithin returns pending installments with a due date in
// [from, to), the window the payment cadence inspects.
func (r *InstallmentRepository) ListPendingDueWithin(ctx context.Context, from, to time.Time) ([]model.Installment, error) {
	var installments []model.Installment
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+installmentColumns+`
		FROM installments
		WHERE status = 'PENDING'
			AND due_date >= ?
			AND due_date < ?
		ORDER BY due_date, sequence
	`, from, to).Scan(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *InstallmentRepository) UpdateDueDate(ctx context.Context, id uuid.UUID, due time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE installments SET due_date = ? WHERE id = ?
	`, due, id).Error
}

func (r *InstallmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, count int, at time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE installments
		SET reminder_sent_count = ?, last_reminder_sent_at = ?
		WHERE id = ?
	`, count, at, id).Error
}

// Adopt reattaches an orphaned installment to the given agreement.
func (r *InstallmentRepository) Adopt(ctx context.Context, id, agreementID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE installments SET agreement_id = ? WHERE id = ?
	`, agreementID, id).Error
}
