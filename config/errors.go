package config

import "errors"

var (
	// ErrMissingKey is returned when a required configuration key is absent.
	ErrMissingKey = errors.New("config: missing required key")
	// ErrOutOfBounds is returned when a key's value violates its validator bounds.
	ErrOutOfBounds = errors.New("config: value out of bounds")
)
