// ABOUTME: Tests for MCP token store operations
// ABOUTME: Covers token creation, lookup, listing, and revocation

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T, s *SQLiteStore, name string) *User {
	t.Helper()
	u := &User{Username: name}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestTokenStore_CreateGeneratesValue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, store, "alice")

	tok := &MCPToken{UserID: u.ID, Name: "laptop"}
	require.NoError(t, store.CreateMCPToken(ctx, tok))

	_, err := uuid.Parse(tok.Token)
	assert.NoError(t, err, "generated token should be a uuid")

	got, err := store.GetMCPToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, "laptop", got.Name)
}

func TestTokenStore_CreateExplicitValue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, store, "alice")

	require.NoError(t, store.CreateMCPToken(ctx, &MCPToken{Token: "fixed-token", UserID: u.ID}))
	err := store.CreateMCPToken(ctx, &MCPToken{Token: "fixed-token", UserID: u.ID})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTokenStore_CreateUnknownUser(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateMCPToken(context.Background(), &MCPToken{UserID: 404})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore_LookupIsExact(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	u := createTestUser(t, store, "alice")
	require.NoError(t, store.CreateMCPToken(ctx, &MCPToken{Token: "abc", UserID: u.ID}))

	_, err := store.GetMCPToken(ctx, "ABC")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetMCPToken(ctx, " abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenStore_ListAndDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	older := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, store.CreateMCPToken(ctx, &MCPToken{Token: "a1", UserID: alice.ID, CreatedAt: older}))
	require.NoError(t, store.CreateMCPToken(ctx, &MCPToken{Token: "a2", UserID: alice.ID}))
	require.NoError(t, store.CreateMCPToken(ctx, &MCPToken{Token: "b1", UserID: bob.ID}))

	tokens, err := store.ListMCPTokens(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "a2", tokens[0].Token)
	assert.Equal(t, "a1", tokens[1].Token)

	require.NoError(t, store.DeleteMCPToken(ctx, "a1"))
	_, err = store.GetMCPToken(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteMCPToken(ctx, "a1"), ErrNotFound)
}
