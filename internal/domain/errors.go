package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned before any mutation when a title or URL is empty.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated is returned when a mutation is attempted without a signed-in owner.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrRemoteRejected wraps a store failure that happened after the
	// optimistic change was applied locally.
	ErrRemoteRejected = errors.New("remote rejected")

	// ErrSubscriptionLost reports a change feed that could not be re-established.
	ErrSubscriptionLost = errors.New("subscription lost")

	// ErrNotFound is returned by stores for unknown record IDs.
	ErrNotFound = errors.New("not found")
)

func invalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// RemoteRejected wraps err so that errors.Is matches both ErrRemoteRejected
// and the underlying store error.
func RemoteRejected(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemoteRejected, op, err)
}
