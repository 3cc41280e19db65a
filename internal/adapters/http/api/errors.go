package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("service unavailable")
)

// Client-facing validation messages.
var (
	errCustomerID  = errors.New("CustomerId must be positive")
	errScoreRange  = errors.New("Score must be between -1000 and 1000")
	errRankRange   = errors.New("Invalid rank range")
	errHighLow     = errors.New("High and low parameters must be non-negative")
	errEmptyBatch  = errors.New("updates must not be empty")
	errInvalidBody = errors.New("invalid request body")
	errIdempotency = errors.New("Idempotency-Key must be at most 64 bytes")
)

// Error tags a failure with the operation that produced it and a sentinel
// kind the handlers map to a status code. Error() returns the client-facing
// message: the cause when present, otherwise the kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return e.Op
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap tags err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of kind for op with no further cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}
