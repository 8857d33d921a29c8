// Package identity provides email/password authentication and the
// session-change feed the client engine is driven by.
package identity

import (
	"context"
	"fmt"
)

// Session is the authenticated identity context for the current client.
// It exists only while the provider reports an authenticated user.
type Session struct {
	UserID string
	Email  string
	Token  string
}

// Provider is the identity gateway capability. OnSessionChange fires the
// callback once at subscribe time with the current state, then on every
// transition between authenticated and unauthenticated.
type Provider interface {
	Register(ctx context.Context, email, password string) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Resume(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context) error
	OnSessionChange(fn func(*Session))
}

// AuthError carries the provider's user-facing message for a failed
// auth operation.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

func authError(message string, err error) *AuthError {
	return &AuthError{Message: message, Err: err}
}
