// ABOUTME: Request context helpers carrying the acting user through handlers
// ABOUTME: Provides WithUser/FromContext for propagating identity via context

package auth

import (
	"context"

	"github.com/2389/ubwiyunge/internal/store"
)

// userContextKey is the key type for storing the acting user in context.Context.
type userContextKey struct{}

// WithUser returns a new context with the acting user attached.
func WithUser(ctx context.Context, user store.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// FromContext retrieves the acting user from the context, returning nil if not present.
func FromContext(ctx context.Context) store.User {
	user, ok := ctx.Value(userContextKey{}).(store.User)
	if !ok {
		return nil
	}
	return user
}

// MustFromContext retrieves the acting user from the context, panicking if not present.
func MustFromContext(ctx context.Context) store.User {
	user := FromContext(ctx)
	if user == nil {
		panic("auth: user not found in context")
	}
	return user
}
