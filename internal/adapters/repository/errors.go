package repository

import "errors"

// Sentinel kinds for ranking store errors.
var (
	ErrNotFound          = errors.New("customer not found")
	ErrInvalidCustomerID = errors.New("invalid customer id")
)
