// ABOUTME: Tests for the ebook-convert subprocess converter
// ABOUTME: Substitutes a shell script for the real Calibre binary

package delivery

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEbookConvert(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	path := filepath.Join(t.TempDir(), "ebook-convert")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return path
}

func TestEbookConvert_Convert(t *testing.T) {
	bin := fakeEbookConvert(t, `cp "$1" "$2"`)
	src := filepath.Join(t.TempDir(), "book.mobi")
	require.NoError(t, os.WriteFile(src, []byte("mobi"), 0644))
	dst := t.TempDir()

	out, err := NewEbookConvert(bin, nil).Convert(context.Background(), src, dst, ".EPUB")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "book.epub"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "mobi", string(data))
}

func TestEbookConvert_Failure(t *testing.T) {
	bin := fakeEbookConvert(t, `echo "unsupported input" >&2; exit 1`)
	src := filepath.Join(t.TempDir(), "book.xyz")
	require.NoError(t, os.WriteFile(src, []byte("?"), 0644))

	_, err := NewEbookConvert(bin, nil).Convert(context.Background(), src, t.TempDir(), "epub")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input")
}

func TestEbookConvert_SameFile(t *testing.T) {
	dir := t.TempDir()
	_, err := NewEbookConvert("unused", nil).Convert(context.Background(), filepath.Join(dir, "a.epub"), dir, "epub")
	assert.Error(t, err)
}

func TestNewEbookConvert_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultEbookConvert, NewEbookConvert("", nil).path)
}
