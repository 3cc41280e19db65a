package dedupe

import "errors"

// Sentinel kinds for idempotency key errors.
var (
	ErrKeyTooLong = errors.New("idempotency key too long")
)
