// ABOUTME: Token gate resolving opaque MCP tokens to principals
// ABOUTME: Distinguishes missing, unknown, and orphaned tokens for distinct HTTP statuses

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/shelf-gateway/internal/store"
)

// Gate errors. Each maps to its own status and message in the HTTP layer.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrPrincipalNotFound = errors.New("principal not found")
)

// TokenLookup resolves a token value to its record.
type TokenLookup interface {
	GetMCPToken(ctx context.Context, token string) (*store.MCPToken, error)
}

// UserLookup resolves a user id to the user record.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// Gate authenticates MCP callers. It only reads from its stores.
type Gate struct {
	tokens TokenLookup
	users  UserLookup
	logger *slog.Logger
}

// NewGate creates a Gate over the given token and user stores.
func NewGate(tokens TokenLookup, users UserLookup, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		tokens: tokens,
		users:  users,
		logger: logger.With("component", "auth"),
	}
}

// Authenticate resolves a raw token to a Principal. An empty raw value is a
// missing credential; anything else is trimmed and looked up exactly, so a
// whitespace-only value is an invalid credential rather than a missing one.
func (g *Gate) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	if raw == "" {
		return nil, ErrMissingCredential
	}
	token := strings.TrimSpace(raw)

	rec, err := g.tokens.GetMCPToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	user, err := g.users.GetUser(ctx, rec.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user %d: %w", rec.UserID, err)
	}

	return &Principal{
		ID:          user.ID,
		Username:    user.Username,
		KindleEmail: user.KindleEmail,
		IsAdmin:     user.IsAdmin,
	}, nil
}

// StatusCode maps an Authenticate error to its HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrPrincipalNotFound):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage maps an Authenticate error to the message shown to the caller.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "Missing token"
	case errors.Is(err, ErrInvalidCredential):
		return "Invalid token"
	case errors.Is(err, ErrPrincipalNotFound):
		return "User not found for token"
	default:
		return "Internal server error"
	}
}
