package domain

import "errors"

var (
	// ErrValidation marks content the provider would reject, such as a
	// templated body without a web beacon.
	ErrValidation = errors.New("validation error")

	// ErrUsage marks caller mistakes: wrong value shapes or missing inputs.
	ErrUsage = errors.New("usage error")
)
