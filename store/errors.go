package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
)

// ErrConcurrentUpdate is returned when a versioned replace loses a race.
// Compare with ==; errors.Is would match any CONFLICT.
var ErrConcurrentUpdate = apperrors.Conflict("book was modified concurrently; retry the request")

// convertMongoError maps driver errors onto the domain taxonomy so callers
// never see raw driver errors. what names the entity for not-found messages.
func convertMongoError(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperrors.NotFound("%s not found", what)
	case mongo.IsDuplicateKeyError(err):
		return apperrors.Conflict("%s already exists", what).WithCause(err)
	case mongo.IsTimeout(err):
		return apperrors.Internal("database timeout", err)
	case mongo.IsNetworkError(err):
		return apperrors.Internal("database unavailable", err)
	default:
		return apperrors.Internal("database error", err)
	}
}
