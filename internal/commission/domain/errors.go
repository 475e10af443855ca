package commission

import "errors"

var (
	// ErrValidation is returned when a required field is missing or invalid.
	ErrValidation = errors.New("commission: validation error")
	// ErrNotFound is returned when a station or record does not exist.
	ErrNotFound = errors.New("commission: not found")
	// ErrInvalidStateTransition is returned for lifecycle violations.
	ErrInvalidStateTransition = errors.New("commission: invalid state transition")
	// ErrPermissionDenied is returned for a missing capability or out-of-scope access.
	ErrPermissionDenied = errors.New("commission: permission denied")
	// ErrUpstreamDataUnavailable is returned when no volume source yields data for a period.
	ErrUpstreamDataUnavailable = errors.New("commission: upstream data unavailable")
	// ErrConcurrencyConflict is returned when a calculation for the same key is already in flight.
	ErrConcurrencyConflict = errors.New("commission: calculation in progress")
	// ErrNilRecord is returned when saving a nil record.
	ErrNilRecord = errors.New("commission: nil record")
)

// ErrorCode maps an error onto its taxonomy code for reports.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrUpstreamDataUnavailable):
		return "upstream_data_unavailable"
	case errors.Is(err, ErrConcurrencyConflict):
		return "concurrency_conflict"
	default:
		return "internal_error"
	}
}
