package generator

import "errors"

var (
	// ErrInvalidVariantSet is returned when a requested variant set is empty or names an unknown variant.
	ErrInvalidVariantSet = errors.New("invalid variant set")
	// ErrAttemptsExhausted is returned by Invoker when every attempt failed.
	ErrAttemptsExhausted = errors.New("generation attempts exhausted")
	// ErrNotFound is returned by stores for unknown ids.
	ErrNotFound = errors.New("not found")
)
