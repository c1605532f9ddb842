package services

import (
	"context"
	"errors"
	"fmt"

	"bar_backoffice/internal/repositories"
)

// --- Custom Service Errors ---
var (
	ErrNotFound          = errors.New("resource not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("concurrent modification detected")
	ErrDataUnavailable   = errors.New("data source unavailable")
	ErrSettlementFailed  = errors.New("settlement failed")
	ErrForbidden         = errors.New("resource belongs to another establishment")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserInactive       = errors.New("user account is disabled")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// mapRepoError translates a repository failure into the service taxonomy,
// keeping the original error in the chain.
func mapRepoError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case errors.Is(err, repositories.ErrDuplicateKey):
		return fmt.Errorf("%w: %s: %w", ErrConflict, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, repositories.ErrDatabaseError):
		return fmt.Errorf("%w: %s: %w", ErrDataUnavailable, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// isServiceError reports whether err already carries a taxonomy sentinel.
func isServiceError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrValidation, ErrInvalidTransition, ErrConflict,
		ErrDataUnavailable, ErrSettlementFailed, ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
