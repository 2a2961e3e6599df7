// ABOUTME: Tests for the Calibre content server client
// ABOUTME: Uses an httptest server that mimics the AJAX, download, and add-book endpoints

package library

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/shelf-gateway/internal/auth"
)

// fakeCalibre is a minimal Calibre content server.
type fakeCalibre struct {
	mu       sync.Mutex
	books    map[string]map[string]any
	files    map[string]string // "EPUB/1" -> content
	uploads  map[string][]byte
	lastAuth string
	queries  []string
}

func newFakeCalibre() *fakeCalibre {
	return &fakeCalibre{
		books: map[string]map[string]any{
			"1": {"application_id": 1, "title": "Dune", "authors": []string{"Frank Herbert"}, "formats": []string{"EPUB"}, "format_metadata": map[string]any{"epub": map[string]any{}}},
			"2": {"application_id": 2, "title": "Neuromancer", "authors": []string{"William Gibson"}, "formats": []string{"MOBI"}, "format_metadata": map[string]any{"mobi": map[string]any{}}},
			"3": {"application_id": 3, "title": "Scan", "formats": []string{"CBZ"}, "format_metadata": map[string]any{"cbz": map[string]any{}}},
		},
		files:   map[string]string{"EPUB/1": "epub-bytes", "MOBI/2": "mobi-bytes"},
		uploads: map[string][]byte{},
	}
}

func (f *fakeCalibre) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, pass, _ := r.BasicAuth()
	f.lastAuth = user + ":" + pass

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "ajax" && parts[1] == "search":
		f.queries = append(f.queries, r.URL.Query().Get("query"))
		ids := []int{3, 2, 1}
		if r.URL.Query().Get("query") == "title:Dune" {
			ids = []int{1}
		}
		if n := r.URL.Query().Get("num"); n == "2" {
			ids = ids[:2]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"total_num": len(ids), "book_ids": ids})
	case len(parts) >= 2 && parts[0] == "ajax" && parts[1] == "books":
		out := map[string]any{}
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if b, ok := f.books[id]; ok {
				out[id] = b
			} else {
				out[id] = nil
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	case len(parts) >= 3 && parts[0] == "ajax" && parts[1] == "book":
		b, ok := f.books[parts[2]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(b)
	case len(parts) >= 3 && parts[0] == "get":
		content, ok := f.files[parts[1]+"/"+parts[2]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, content)
	case len(parts) >= 5 && parts[0] == "cdb" && parts[1] == "add-book":
		data, _ := io.ReadAll(r.Body)
		name := parts[4]
		if _, dup := f.uploads[name]; dup {
			_ = json.NewEncoder(w).Encode(map[string]any{"book_id": nil, "duplicates": []any{map[string]any{"title": name}}})
			return
		}
		f.uploads[name] = data
		_ = json.NewEncoder(w).Encode(map[string]any{"book_id": 100 + len(f.uploads), "title": name, "id": parts[2]})
	default:
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusTeapot)
	}
}

func setupCalibre(t *testing.T) (*CalibreClient, *fakeCalibre) {
	t.Helper()
	fake := newFakeCalibre()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewCalibreClient(CalibreConfig{URL: srv.URL + "/", Username: "reader", Password: "secret"})
	require.NoError(t, err)
	return client, fake
}

func TestNewCalibreClient_RequiresURL(t *testing.T) {
	_, err := NewCalibreClient(CalibreConfig{})
	assert.Error(t, err)
}

func TestCalibreClient_Search(t *testing.T) {
	client, fake := setupCalibre(t)

	books, err := client.Search(context.Background(), "title:Dune", 20)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, "reader:secret", fake.lastAuth)
	assert.Equal(t, []string{"title:Dune"}, fake.queries)
}

func TestCalibreClient_SearchPreservesOrderAndLimit(t *testing.T) {
	client, _ := setupCalibre(t)

	books, err := client.Search(context.Background(), "", 2)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, int64(3), books[0].BookID)
	assert.Equal(t, int64(2), books[1].BookID)

	books, err = client.Search(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestCalibreClient_BooksSkipsUnknown(t *testing.T) {
	client, _ := setupCalibre(t)

	books, err := client.Books(context.Background(), []int64{1, 99, 2})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, int64(1), books[0].BookID)
	assert.Equal(t, int64(2), books[1].BookID)
}

func TestCalibreClient_Book(t *testing.T) {
	client, _ := setupCalibre(t)

	book, err := client.Book(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Neuromancer", book.Title)

	_, err = client.Book(context.Background(), 404)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestCalibreClient_LibraryIDInPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"application_id": 5, "title": "x"}`)
	}))
	defer srv.Close()

	client, err := NewCalibreClient(CalibreConfig{URL: srv.URL, LibraryID: "My Books"})
	require.NoError(t, err)

	_, err = client.Book(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "/ajax/book/5/My Books", gotPath)
}

func TestCalibreClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "library locked", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewCalibreClient(CalibreConfig{URL: srv.URL})
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "library locked")
}

func TestCalibreClient_Download(t *testing.T) {
	client, _ := setupCalibre(t)
	dir := t.TempDir()

	path, err := client.Download(context.Background(), 1, "epub", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1.epub"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "epub-bytes", string(data))

	_, err = client.Download(context.Background(), 1, "pdf", dir)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestCalibreClient_AddBook(t *testing.T) {
	client, fake := setupCalibre(t)

	id, err := client.AddBook(context.Background(), "Dune - Frank Herbert.epub", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)
	assert.Equal(t, []byte("payload"), fake.uploads["Dune - Frank Herbert.epub"])

	_, err = client.AddBook(context.Background(), "Dune - Frank Herbert.epub", []byte("payload"))
	assert.ErrorIs(t, err, ErrDuplicateBook)
}

// fakeConverter "converts" by copying the file under a new extension.
type fakeConverter struct {
	calls []string
}

func (c *fakeConverter) Convert(_ context.Context, src, dstDir, targetExt string) (string, error) {
	c.calls = append(c.calls, filepath.Ext(src)+"->"+targetExt)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dstDir, "converted."+targetExt)
	return out, os.WriteFile(out, append([]byte("converted:"), data...), 0644)
}

func TestCalibreLibrary_OpenBook(t *testing.T) {
	client, _ := setupCalibre(t)
	conv := &fakeConverter{}
	lib := NewCalibreLibrary(client, conv)
	p := &auth.Principal{ID: 1}

	t.Run("epub is downloaded directly", func(t *testing.T) {
		f, err := lib.OpenBook(context.Background(), p, 1)
		require.NoError(t, err)
		data, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		assert.Equal(t, "epub-bytes", string(data))

		require.NoError(t, f.Close())
		_, err = os.Stat(f.Path)
		assert.True(t, os.IsNotExist(err), "temp download should be removed")
	})

	t.Run("other formats are converted", func(t *testing.T) {
		f, err := lib.OpenBook(context.Background(), p, 2)
		require.NoError(t, err)
		defer f.Close()

		data, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		assert.Equal(t, "converted:mobi-bytes", string(data))
		assert.Equal(t, []string{".mobi->epub"}, conv.calls)
	})

	t.Run("no convertible format", func(t *testing.T) {
		_, err := lib.OpenBook(context.Background(), p, 3)
		assert.ErrorIs(t, err, ErrNoReadableFormat)
	})

	t.Run("missing book", func(t *testing.T) {
		_, err := lib.OpenBook(context.Background(), p, 77)
		assert.ErrorIs(t, err, ErrBookNotFound)
	})
}

func TestCalibreLibrary_RecentAndDetails(t *testing.T) {
	client, _ := setupCalibre(t)
	lib := NewCalibreLibrary(client, nil)
	p := &auth.Principal{ID: 1}

	assert.Equal(t, Calibre, lib.Type())

	books, err := lib.Recent(context.Background(), p, 5)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, int64(3), books[0].ID())

	book, err := lib.Details(context.Background(), p, 1)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.DisplayTitle())
}
