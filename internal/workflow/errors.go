package workflow

import "errors"

// Sentinel errors raised by transition validation.  Handlers translate
// them into HTTP responses: ErrTransitionNotAllowed and
// ErrPreconditionNotMet map to 422, ErrValidation to 400.  Errors
// returned by Validate wrap one of these sentinels, so callers should
// match with errors.Is.
var (
	// ErrTransitionNotAllowed means the requested edge does not exist in
	// the adjacency list, or the caller's role may not traverse it.
	ErrTransitionNotAllowed = errors.New("transition not allowed")

	// ErrPreconditionNotMet means the edge exists but a business rule on
	// the target status fails (missing reception, reschedule cap, ...).
	ErrPreconditionNotMet = errors.New("precondition not met")

	// ErrValidation means the input itself is malformed, e.g. an unknown
	// target status.
	ErrValidation = errors.New("validation failed")
)
