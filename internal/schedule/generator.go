// Package schedule generates installment schedules for debt agreements.
package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/arvale/aod-service/internal/model"
)

// ErrInvalidInput is returned when schedule parameters fail validation.
// It wraps nothing; callers match it with errors.Is.
var ErrInvalidInput = fmt.Errorf("invalid schedule input")

// Generate produces an ordered installment schedule: months entries, due
// dates advancing by naive calendar months from startDate, and a uniform
// per-installment amount of round((outstanding-downPayment)/months, 2).
// The rounding residue is not redistributed, so the schedule total may drift
// from the financed amount by up to a cent per installment.
//
// Generate is pure: identical inputs always yield an identical schedule.
func Generate(outstanding, downPayment float64, months int, startDate time.Time) ([]model.ScheduleEntry, error) {
	if outstanding <= 0 {
		return nil, fmt.Errorf("%w: outstanding amount must be positive, got %.2f", ErrInvalidInput, outstanding)
	}
	if downPayment < 0 {
		return nil, fmt.Errorf("%w: down payment must not be negative, got %.2f", ErrInvalidInput, downPayment)
	}
	if downPayment >= outstanding {
		return nil, fmt.Errorf("%w: down payment %.2f must be below outstanding %.2f", ErrInvalidInput, downPayment, outstanding)
	}
	if months < 1 {
		return nil, fmt.Errorf("%w: term must be at least one month, got %d", ErrInvalidInput, months)
	}

	amount := round2((outstanding - downPayment) / float64(months))

	entries := make([]model.ScheduleEntry, 0, months)
	for i := 0; i < months; i++ {
		entries = append(entries, model.ScheduleEntry{
			Sequence: i + 1,
			DueDate:  startDate.AddDate(0, i, 0),
			Amount:   amount,
		})
	}
	return entries, nil
}

// InstallmentAmount returns the uniform per-installment amount without
// building the full schedule.
func InstallmentAmount(outstanding, downPayment float64, months int) float64 {
	if months < 1 {
		return 0
	}
	return round2((outstanding - downPayment) / float64(months))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
