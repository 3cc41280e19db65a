package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig wraps failures reading the file or environment layers.
	ErrLoadConfig = errors.New("load config failed")
)
