package domain

import "errors"

// Error taxonomy for the pipeline. Data errors recover locally as HOLD
// signals; transient execution errors are retried with backoff; non-transient
// execution errors fail immediately; an unhedged leg is reported and recorded
// as open exposure, never retried automatically.
var (
	// ErrInsufficientData marks a cycle whose quote set cannot support a
	// cross-venue comparison (fewer than two venues).
	ErrInsufficientData = errors.New("insufficient venue data")

	// Transient execution errors: safe to retry with backoff.
	ErrRateLimited      = errors.New("rate limited")
	ErrVenueUnavailable = errors.New("venue unavailable")
	ErrTimeout          = errors.New("request timed out")

	// Non-transient execution errors: fail immediately, never retried.
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidSymbol       = errors.New("invalid symbol")
	ErrInvalidOrder        = errors.New("invalid order parameters")

	// ErrUnhedgedLeg marks the partial-failure state where the buy leg
	// filled but the sell leg could not be placed.
	ErrUnhedgedLeg = errors.New("unhedged leg")

	// ErrNotFilled marks an order the venue accepted but executed no
	// quantity for, a normal immediate-or-cancel outcome.
	ErrNotFilled = errors.New("order not filled")

	// ErrDuplicateTrade reports an attempt to persist a second result
	// under an already-recorded trade ID.
	ErrDuplicateTrade = errors.New("duplicate trade id")

	// ErrNotFound marks a lookup for a record that does not exist.
	ErrNotFound = errors.New("not found")
)

// IsTransient reports whether err belongs to the retryable class of
// execution errors (network timeouts, rate limits, venue 5xx).
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrVenueUnavailable) ||
		errors.Is(err, ErrTimeout)
}
