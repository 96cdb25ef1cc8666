package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by a store used before Initialize.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrCancelled marks an operation stopped by its caller. It wraps context.Canceled.
	ErrCancelled = errors.New("operation cancelled")

	// ErrBusy is returned when a single-flight operation is already running.
	ErrBusy = errors.New("operation already in progress")
)

// AuthError means the remote API rejected the credentials. Never retried.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (HTTP %d): %s", e.Status, e.Body)
}

// FetchError is any other failure of a remote fetch: transport, decoding or a non-success status.
type FetchError struct {
	AssetID string
	Range   *FetchRange
	Status  int
	Body    string
	Err     error
}

func (e *FetchError) Error() string {
	msg := "fetch " + e.AssetID
	if e.Range != nil {
		msg += " [" + e.Range.String() + "]"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Cancelled wraps a context error so that errors.Is matches both ErrCancelled and the cause.
func Cancelled(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// IsCancelled reports whether err came from cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// StatusLine renders err as a one-line, human-readable status naming the error kind.
func StatusLine(subject string, err error) string {
	prefix := ""
	if subject != "" {
		prefix = subject + ": "
	}
	if err == nil {
		return prefix + "ok"
	}

	var authErr *AuthError
	var fetchErr *FetchError
	switch {
	case IsCancelled(err):
		return prefix + "cancelled"
	case errors.As(err, &authErr):
		return prefix + "auth error: " + authErr.Error()
	case errors.As(err, &fetchErr):
		return prefix + "fetch error: " + fetchErr.Error()
	case errors.Is(err, ErrNotInitialized):
		return prefix + "store error: " + err.Error()
	case errors.Is(err, ErrBusy):
		return prefix + "busy: " + err.Error()
	default:
		return prefix + "error: " + err.Error()
	}
}
