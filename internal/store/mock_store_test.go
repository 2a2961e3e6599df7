// ABOUTME: Tests for the in-memory MockStore
// ABOUTME: Keeps the mock's semantics aligned with the SQLite store

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_UsersAndTokens(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	u := &User{Username: "alice"}
	require.NoError(t, m.CreateUser(ctx, u))
	assert.Equal(t, int64(1), u.ID)
	assert.ErrorIs(t, m.CreateUser(ctx, &User{Username: "alice"}), ErrDuplicate)

	tok := &MCPToken{UserID: u.ID}
	require.NoError(t, m.CreateMCPToken(ctx, tok))
	assert.NotEmpty(t, tok.Token)

	got, err := m.GetMCPToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	assert.ErrorIs(t, m.CreateMCPToken(ctx, &MCPToken{UserID: 99}), ErrNotFound)

	m.DeleteUser(u.ID)
	_, err = m.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Token survives the user so callers can observe a dangling token.
	_, err = m.GetMCPToken(ctx, tok.Token)
	assert.NoError(t, err)
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	u := &User{Username: "alice"}
	require.NoError(t, m.CreateUser(ctx, u))

	got, err := m.GetUser(ctx, u.ID)
	require.NoError(t, err)
	got.Username = "mallory"

	again, err := m.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)
}

func TestMockStore_LatestAudiobookTask(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, m.CreateAudiobookTask(ctx, &AudiobookTask{TaskID: "1", UserID: 1, BookID: 3, LibraryType: "anx", CreatedAt: base}))
	require.NoError(t, m.CreateAudiobookTask(ctx, &AudiobookTask{TaskID: "2", UserID: 2, BookID: 3, LibraryType: "anx", CreatedAt: base.Add(time.Second)}))

	got, err := m.GetLatestAudiobookTask(ctx, 1, 3, "anx")
	require.NoError(t, err)
	assert.Equal(t, "1", got.TaskID)

	got, err = m.GetLatestAudiobookTask(ctx, 1, 3, "calibre")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)
}
