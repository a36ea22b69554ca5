package errors

import "errors"

// Standard provider-related errors
var (
	ErrMissingCredentials = errors.New("provider: missing API credentials")
	ErrNotFound           = errors.New("provider: resource not found")
	ErrServiceUnavailable = errors.New("provider: service unavailable or internal server error")

	// Application/Flow specific errors
	ErrUnknownForcedField = errors.New("recognizer: unknown forced metadata field")
	ErrBadFormula         = errors.New("formula: expression contains characters outside the arithmetic grammar")
)
