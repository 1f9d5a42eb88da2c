package service

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrInvalidInput         = errors.New("invalid input")
	ErrOrphanedRecord       = errors.New("installment has no resolvable parent agreement")
	ErrIntegrityGuard       = errors.New("installment count diverges from agreement term, recalculation aborted")
	ErrExternalService      = errors.New("external service failure")
	ErrNoCustomersAvailable = errors.New("no customers available for assignment")
)
