// ABOUTME: Tests for the token gate
// ABOUTME: Covers missing, invalid, orphaned, trimmed, and store-failure cases

package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shelf-gateway/internal/store"
)

// setupGate creates a gate over a mock store holding one user with one token.
func setupGate(t *testing.T) (*Gate, *store.MockStore, *store.User, string) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMockStore()

	user := &store.User{Username: "alice", KindleEmail: "alice@kindle.com"}
	require.NoError(t, s.CreateUser(ctx, user))
	tok := &store.MCPToken{UserID: user.ID, Name: "test"}
	require.NoError(t, s.CreateMCPToken(ctx, tok))

	return NewGate(s, s, nil), s, user, tok.Token
}

func TestGate_Authenticate_Valid(t *testing.T) {
	gate, _, user, token := setupGate(t)

	p, err := gate.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.ID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "alice@kindle.com", p.KindleEmail)
}

func TestGate_Authenticate_TrimsWhitespace(t *testing.T) {
	gate, _, user, token := setupGate(t)

	p, err := gate.Authenticate(context.Background(), "  "+token+"\n")
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.ID)
}

func TestGate_Authenticate_Failures(t *testing.T) {
	gate, s, user, token := setupGate(t)

	tests := []struct {
		name    string
		raw     string
		prepare func()
		wantErr error
	}{
		{name: "missing", raw: "", wantErr: ErrMissingCredential},
		{name: "whitespace only", raw: "   ", wantErr: ErrInvalidCredential},
		{name: "unknown token", raw: "not-a-token", wantErr: ErrInvalidCredential},
		{name: "case differs", raw: "X" + token[1:], wantErr: ErrInvalidCredential},
		{
			name:    "user deleted",
			raw:     token,
			prepare: func() { s.DeleteUser(user.ID) },
			wantErr: ErrPrincipalNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepare != nil {
				tt.prepare()
			}
			p, err := gate.Authenticate(context.Background(), tt.raw)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type failingTokens struct{}

func (failingTokens) GetMCPToken(context.Context, string) (*store.MCPToken, error) {
	return nil, errors.New("disk on fire")
}

func TestGate_Authenticate_StoreFailure(t *testing.T) {
	gate := NewGate(failingTokens{}, store.NewMockStore(), nil)

	_, err := gate.Authenticate(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestStatusCodeAndMessage(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{ErrMissingCredential, http.StatusUnauthorized, "Missing token"},
		{ErrInvalidCredential, http.StatusForbidden, "Invalid token"},
		{ErrPrincipalNotFound, http.StatusForbidden, "User not found for token"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusCode(tt.err), tt.err.Error())
		assert.Equal(t, tt.message, ErrorMessage(tt.err), tt.err.Error())
	}
	assert.Equal(t, http.StatusOK, StatusCode(nil))
}
