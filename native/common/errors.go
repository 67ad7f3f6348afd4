package common

import "errors"

// Category sentinels for business-rule failures. Module packages wrap these so
// callers can branch with errors.Is on either the category or the specific
// failure.
var (
	// ErrValidation covers malformed or out-of-policy input: bad currency,
	// unsupported chain, price outside the configured bounds.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound covers missing listings, offers, assets and escrows.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized covers callers acting on records they do not own,
	// including self-trades.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState covers transitions requested against the wrong status.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict indicates a conditional write matched zero rows because a
	// concurrent operation moved the record first.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrVerification indicates an external deposit proof was absent or
	// insufficient.
	ErrVerification = errors.New("external verification failed")
	// ErrUnsupported indicates the chain/currency combination has no
	// configured capability.
	ErrUnsupported = errors.New("not supported")
)
