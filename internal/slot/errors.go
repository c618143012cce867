package slot

import "errors"

// Error kinds surfaced by the lifecycle manager.  Reasons are attached with
// fmt.Errorf("%w: ...") so callers classify with errors.Is and still get a
// readable message.
var (
	// ErrNotFound is returned for an unknown slot_id.
	ErrNotFound = errors.New("slot not found")
	// ErrConflict is returned when the slot is not in the state the action requires.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned when an action needs an identity and has none.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the actor may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("invalid input")
)

// ErrStale is returned by a Store when a compare-and-swap finds a version
// other than the expected one.
var ErrStale = errors.New("slot version changed")
