// Package service holds the session core and the task/user operations the
// HTTP handlers call.  Every accepted mutation is followed by a full
// snapshot broadcast of the affected collection.
package service

import (
	"context"
	"errors"
)

// Sentinel errors.  Handlers map them to status codes with errors.Is.
var (
	// ErrValidation marks missing or malformed input.  It is wrapped with a
	// message naming the offending field.
	ErrValidation = errors.New("validation failed")

	ErrDuplicateEmail = errors.New("a user with this email already exists")
	ErrDuplicateName  = errors.New("a user with this name already exists")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password.
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

	ErrNotFound = errors.New("not found")

	// ErrPersistence wraps every storage failure that is not one of the
	// sentinels above.
	ErrPersistence = errors.New("persistence failure")
)

// Notifier pushes a full collection snapshot to every subscriber.
type Notifier interface {
	Notify(ctx context.Context, event string, snapshot any) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, any) error { return nil }
