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

const customerColumns = `
	id,
	full_name,
	policy_number,
	phone,
	email,
	amount_due,
	assignment_status,
	assigned_agent_id,
	assigned_at,
	priority_score
`

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer %s", service.ErrNotFound, id)
	}
	return &customer, nil
}

// ListAvailable returns the assignment pool ordered by amount due,
// largest first. The id tiebreak keeps the order stable between pulls.
func (r *CustomerRepository) ListAvailable(ctx context.Context) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+customerColumns+`
		FROM customers
		WHERE assignment_status = 'AVAILABLE'
		ORDER BY amount_due DESC, id
	`).Scan(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *CustomerRepository) ListAssigned(ctx context.Context) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+customerColumns+`
		FROM customers
		WHERE assignment_status = 'ASSIGNED'
		ORDER BY assigned_agent_id, priority_score DESC
	`).Scan(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *CustomerRepository) Assign(ctx context.Context, customerID, agentID uuid.UUID, at time.Time, priority float64) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE customers
		SET
			assignment_status = 'ASSIGNED',
			assigned_agent_id = ?,
			assigned_at = ?,
			priority_score = ?
		WHERE id = ?
	`, agentID, at, priority, customerID).Error
}
