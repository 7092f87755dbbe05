package lending

import (
	"errors"

	"cabinetkey/models"
)

// classify leaves domain outcomes untouched and turns everything else into a
// Fault, which tells the caller nothing was applied.
func classify(op string, err error) error {
	if err == nil || isOutcome(err) {
		return err
	}
	return models.NewFault(op, err)
}

func isOutcome(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrConflict) ||
		errors.Is(err, models.ErrPermissionDenied) ||
		errors.Is(err, models.ErrInvalidInput) ||
		models.IsFault(err)
}

// Outcome names an error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case models.IsFault(err):
		return "fault"
	case errors.Is(err, models.ErrNotHolder):
		return "not_holder"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	default:
		return "fault"
	}
}
