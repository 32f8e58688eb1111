package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	apperrors "github.com/curamed/curamed-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *apperrors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return apperrors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return apperrors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return apperrors.Validation(map[string]string{
			col: "must not be empty",
		})

	// lock_not_available (55P03), serialization_failure (40001),
	// deadlock_detected (40P01): the allocation lost a race on batch row
	// locks. The caller may retry.
	case "55P03", "40001", "40P01":
		return apperrors.ContentionTimeout()

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *apperrors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		// Last line of defense behind the guarded UPDATE in Deduct.
		return apperrors.Conflict("stock movement would drive batch quantity below zero")

	case strings.Contains(constraint, "direction_valid"):
		return apperrors.Validation(map[string]string{
			"direction": "must be one of: in, out",
		})

	case strings.Contains(constraint, "reference_type_valid"):
		return apperrors.Validation(map[string]string{
			"reference_type": "must be one of: receipt, sale, ipd_issue, requisition_transfer",
		})

	case strings.Contains(constraint, "status_valid"):
		return apperrors.Validation(map[string]string{
			"status": "must be one of: pending, issued",
		})

	default:
		return apperrors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batches_item_store_number"):
		return "a batch with this batch number already exists for the item in this store"
	case strings.Contains(constraint, "code"):
		return "a record with this code already exists"
	default:
		return "a record with these values already exists"
	}
}
