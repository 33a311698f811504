package config

import "errors"

var (
	// ErrBadValue means a key holds something that is not a number.
	ErrBadValue = errors.New("bad configuration value")

	// ErrInvalid means the configuration is well-formed but unusable.
	ErrInvalid = errors.New("invalid configuration")
)
