// ABOUTME: Tests for library type parsing and dispatch
// ABOUTME: Covers ParseType, Libraries.For, Title fallback, and BookFile cleanup

package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shelf-gateway/internal/auth"
)

func TestParseType(t *testing.T) {
	for _, s := range []string{"calibre", "anx"} {
		got, err := ParseType(s)
		require.NoError(t, err)
		assert.Equal(t, Type(s), got)
	}

	for _, s := range []string{"", "Calibre", "ANX", "kindle", " anx"} {
		_, err := ParseType(s)
		assert.ErrorIs(t, err, ErrInvalidLibraryType, s)
	}
}

// stubLibrary is a Library returning canned values.
type stubLibrary struct {
	typ   Type
	books map[int64]Book
}

func (s *stubLibrary) Type() Type { return s.typ }

func (s *stubLibrary) Recent(context.Context, *auth.Principal, int) ([]Book, error) {
	return nil, nil
}

func (s *stubLibrary) Details(_ context.Context, _ *auth.Principal, id int64) (Book, error) {
	b, ok := s.books[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	return b, nil
}

func (s *stubLibrary) OpenBook(context.Context, *auth.Principal, int64) (*BookFile, error) {
	return nil, ErrNoReadableFormat
}

func TestLibraries_For(t *testing.T) {
	cal := &stubLibrary{typ: Calibre}
	anx := &stubLibrary{typ: Anx}
	libs := NewLibraries(cal, anx)

	got, err := libs.For("calibre")
	require.NoError(t, err)
	assert.Same(t, cal, got)

	got, err = libs.For("anx")
	require.NoError(t, err)
	assert.Same(t, anx, got)

	_, err = libs.For("dropbox")
	assert.ErrorIs(t, err, ErrInvalidLibraryType)
}

func TestTitle(t *testing.T) {
	lib := &stubLibrary{typ: Anx, books: map[int64]Book{
		1: &AnxBook{BookID: 1, Title: "Dune"},
		2: &AnxBook{BookID: 2},
	}}
	p := &auth.Principal{Username: "alice"}

	assert.Equal(t, "Dune", Title(context.Background(), lib, p, 1))
	assert.Equal(t, "N/A", Title(context.Background(), lib, p, 2))
	assert.Equal(t, "N/A", Title(context.Background(), lib, p, 3))
}

func TestBookFile_Close(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(tmp, 0755))

	f := &BookFile{Path: filepath.Join(tmp, "book.epub"), cleanup: []string{tmp}}
	require.NoError(t, f.Close())

	_, err := os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))

	// A BookFile pointing at a library file removes nothing.
	keep := filepath.Join(dir, "keep.epub")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0644))
	require.NoError(t, (&BookFile{Path: keep}).Close())
	_, err = os.Stat(keep)
	assert.NoError(t, err)
}
