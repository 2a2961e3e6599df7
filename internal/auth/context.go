// ABOUTME: Principal context for tracking the authenticated user through request handlers
// ABOUTME: Provides WithPrincipal/PrincipalFromContext for propagating identity via context

package auth

import (
	"context"
)

// Principal is the authenticated identity a request runs as. It is resolved
// once per request by the Gate and never modified afterwards.
type Principal struct {
	ID          int64
	Username    string
	KindleEmail string
	IsAdmin     bool
}

// principalContextKey is the key type for storing a Principal in context.Context.
type principalContextKey struct{}

// WithPrincipal returns a new context with the Principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the Principal from the context, returning nil if not present.
func PrincipalFromContext(ctx context.Context) *Principal {
	val := ctx.Value(principalContextKey{})
	if val == nil {
		return nil
	}
	p, ok := val.(*Principal)
	if !ok {
		return nil
	}
	return p
}

// MustPrincipal retrieves the Principal from the context, panicking if not present.
func MustPrincipal(ctx context.Context) *Principal {
	p := PrincipalFromContext(ctx)
	if p == nil {
		panic("auth: Principal not found in context")
	}
	return p
}
