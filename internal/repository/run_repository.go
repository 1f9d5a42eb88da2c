package repository

import (
	"context"

	"gorm.io/gorm"
)

// RunRepository is the durable once-per-day guard behind the scheduler. The
// primary key on run_day makes Claim an atomic check-and-set, so two
// instances (or a restarted process) cannot both run the cadences for the
// same calendar day.
type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Claim(ctx context.Context, day string) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO scheduler_runs (run_day)
		VALUES (?)
		ON CONFLICT (run_day) DO NOTHING
	`, day)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *RunRepository) Release(ctx context.Context, day string) error {
	return r.db.WithContext(ctx).Exec(`
		DELETE FROM scheduler_runs WHERE run_day = ?
	`, day).Error
}
