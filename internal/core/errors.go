// v1
// internal/core/errors.go
package core

import "errors"

var (
	// ErrInvalidReading marks ingestion input that is malformed or out of
	// range. Such readings are rejected, never retried.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrInvalidWindow marks a query window whose start is not before its end.
	ErrInvalidWindow = errors.New("invalid window")

	// ErrInvalidArgument marks a query parameter (such as a non-positive
	// limit) that is rejected before any work happens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownDevice marks a device id that is not registered for the
	// requesting user.
	ErrUnknownDevice = errors.New("unknown device")
)
