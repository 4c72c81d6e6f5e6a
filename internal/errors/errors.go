package errors

import (
	"errors"
	"fmt"
)

// Error classes. Every error surfaced by the gateway layers unwraps to one of these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRemoteRejected    = errors.New("remote rejected the request")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrTimeout           = errors.New("timed out waiting for the transaction outcome")
	ErrTransientNotReady = errors.New("callback not found")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrBearerRequired  = errors.New("bearer token required")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
