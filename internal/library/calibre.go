// ABOUTME: Calibre content server client over its AJAX API
// ABOUTME: Searches, fetches metadata, downloads formats, and uploads books

package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/shelf-gateway/internal/auth"
)

// ErrDuplicateBook indicates Calibre refused an upload because the book exists.
var ErrDuplicateBook = errors.New("book already exists in Calibre")

// formatPreference lists source formats tried, in order, when a book has no EPUB.
var formatPreference = []string{"AZW3", "MOBI", "AZW", "PDF", "DOCX", "FB2", "RTF", "TXT", "HTMLZ"}

// CalibreConfig configures a CalibreClient.
type CalibreConfig struct {
	URL        string
	Username   string
	Password   string
	LibraryID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// CalibreClient talks to a Calibre content server.
type CalibreClient struct {
	baseURL   string
	username  string
	password  string
	libraryID string
	client    *http.Client
	logger    *slog.Logger
}

// NewCalibreClient creates a new Calibre client.
func NewCalibreClient(cfg CalibreConfig) (*CalibreClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("calibre url is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CalibreClient{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		username:  cfg.Username,
		password:  cfg.Password,
		libraryID: cfg.LibraryID,
		client:    client,
		logger:    logger.With("component", "calibre"),
	}, nil
}

// endpoint builds a URL from path segments, appending the library id when set.
func (c *CalibreClient) endpoint(query url.Values, segments ...string) string {
	escaped := make([]string, 0, len(segments)+1)
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	if c.libraryID != "" {
		escaped = append(escaped, url.PathEscape(c.libraryID))
	}
	u := c.baseURL + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *CalibreClient) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling calibre: %w", err)
	}
	return resp, nil
}

// getJSON fetches target and decodes the body into v.
// A 404 is reported as ErrBookNotFound.
func (c *CalibreClient) getJSON(ctx context.Context, target string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrBookNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding calibre response: %w", err)
	}
	return nil
}

// handleErrorResponse extracts an error message from a non-200 response.
func (c *CalibreClient) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("calibre returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

type searchResponse struct {
	TotalNum int     `json:"total_num"`
	BookIDs  []int64 `json:"book_ids"`
}

// Search runs a Calibre search expression and returns up to limit books,
// newest first. An empty query matches every book.
func (c *CalibreClient) Search(ctx context.Context, query string, limit int) ([]*CalibreBook, error) {
	if limit <= 0 {
		return []*CalibreBook{}, nil
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("num", strconv.Itoa(limit))
	q.Set("offset", "0")
	q.Set("sort", "timestamp")
	q.Set("sort_order", "desc")

	var sr searchResponse
	if err := c.getJSON(ctx, c.endpoint(q, "ajax", "search"), &sr); err != nil {
		if errors.Is(err, ErrBookNotFound) {
			return []*CalibreBook{}, nil
		}
		return nil, fmt.Errorf("searching calibre: %w", err)
	}
	c.logger.Debug("calibre search", "query", query, "total", sr.TotalNum, "returned", len(sr.BookIDs))

	return c.Books(ctx, sr.BookIDs)
}

// Books fetches metadata for ids, preserving their order and skipping ids
// Calibre does not know.
func (c *CalibreClient) Books(ctx context.Context, ids []int64) ([]*CalibreBook, error) {
	books := []*CalibreBook{}
	if len(ids) == 0 {
		return books, nil
	}

	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(idStrs, ","))

	var raw map[string]json.RawMessage
	if err := c.getJSON(ctx, c.endpoint(q, "ajax", "books"), &raw); err != nil {
		return nil, fmt.Errorf("fetching calibre books: %w", err)
	}

	for _, id := range idStrs {
		if book := FormatCalibreBook(raw[id]); book != nil {
			books = append(books, book)
		}
	}
	return books, nil
}

// Book fetches one book's metadata. Returns ErrBookNotFound if Calibre has no such book.
func (c *CalibreClient) Book(ctx context.Context, id int64) (*CalibreBook, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, c.endpoint(nil, "ajax", "book", strconv.FormatInt(id, 10)), &raw); err != nil {
		if errors.Is(err, ErrBookNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching calibre book %d: %w", id, err)
	}
	book := FormatCalibreBook(raw)
	if book == nil {
		return nil, ErrBookNotFound
	}
	return book, nil
}

// Download saves one format of a book into dir and returns the file path.
func (c *CalibreClient) Download(ctx context.Context, id int64, format, dir string) (string, error) {
	format = strings.ToUpper(format)
	resp, err := c.do(ctx, http.MethodGet, c.endpoint(nil, "get", format, strconv.FormatInt(id, 10)), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %d has no %s format", ErrBookNotFound, id, format)
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.handleErrorResponse(resp)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d.%s", id, strings.ToLower(format)))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("writing download file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing download file: %w", err)
	}
	return path, nil
}

type addBookResponse struct {
	BookID     *int64   `json:"book_id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Duplicates []any    `json:"duplicates"`
}

// AddBook uploads a file to Calibre and returns the new book id.
// Returns ErrDuplicateBook when Calibre reports the book already exists.
func (c *CalibreClient) AddBook(ctx context.Context, filename string, data []byte) (int64, error) {
	jobID := uuid.New().String()
	target := c.endpoint(nil, "cdb", "add-book", jobID, "n", filename)

	resp, err := c.do(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.handleErrorResponse(resp)
	}

	var ar addBookResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return 0, fmt.Errorf("decoding add-book response: %w", err)
	}
	if len(ar.Duplicates) > 0 || ar.BookID == nil {
		return 0, ErrDuplicateBook
	}

	c.logger.Info("uploaded book to calibre", "book_id", *ar.BookID, "title", ar.Title)
	return *ar.BookID, nil
}

// CalibreLibrary adapts CalibreClient to the Library interface. The Calibre
// library is shared, so the principal does not affect results.
type CalibreLibrary struct {
	client    *CalibreClient
	converter Converter
}

// NewCalibreLibrary creates the Calibre Library implementation.
func NewCalibreLibrary(client *CalibreClient, converter Converter) *CalibreLibrary {
	return &CalibreLibrary{client: client, converter: converter}
}

// Client returns the underlying Calibre client.
func (l *CalibreLibrary) Client() *CalibreClient { return l.client }

// Search runs a Calibre search expression over the shared library.
func (l *CalibreLibrary) Search(ctx context.Context, query string, limit int) ([]*CalibreBook, error) {
	return l.client.Search(ctx, query, limit)
}

// AddBook uploads a file to the shared library.
func (l *CalibreLibrary) AddBook(ctx context.Context, filename string, data []byte) (int64, error) {
	return l.client.AddBook(ctx, filename, data)
}

// Type returns Calibre.
func (l *CalibreLibrary) Type() Type { return Calibre }

// Recent returns the most recently added books.
func (l *CalibreLibrary) Recent(ctx context.Context, _ *auth.Principal, limit int) ([]Book, error) {
	books, err := l.client.Search(ctx, "", limit)
	if err != nil {
		return nil, err
	}
	out := make([]Book, len(books))
	for i, b := range books {
		out[i] = b
	}
	return out, nil
}

// Details returns one book's metadata.
func (l *CalibreLibrary) Details(ctx context.Context, _ *auth.Principal, bookID int64) (Book, error) {
	book, err := l.client.Book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// OpenBook downloads the EPUB, or the best other format converted to EPUB.
func (l *CalibreLibrary) OpenBook(ctx context.Context, _ *auth.Principal, bookID int64) (*BookFile, error) {
	book, err := l.client.Book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return l.fetchAs(ctx, book, "epub")
}

// Fetch downloads the book in targetExt, converting from another format when
// Calibre does not have it. The caller must Close the result.
func (l *CalibreLibrary) Fetch(ctx context.Context, bookID int64, targetExt string) (*CalibreBook, *BookFile, error) {
	book, err := l.client.Book(ctx, bookID)
	if err != nil {
		return nil, nil, err
	}
	f, err := l.fetchAs(ctx, book, targetExt)
	if err != nil {
		return nil, nil, err
	}
	return book, f, nil
}

func (l *CalibreLibrary) fetchAs(ctx context.Context, book *CalibreBook, targetExt string) (*BookFile, error) {
	dir, err := os.MkdirTemp("", "shelf-calibre-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	f := &BookFile{cleanup: []string{dir}}

	target := strings.ToUpper(targetExt)
	if hasFormat(book.available, target) {
		f.Path, err = l.client.Download(ctx, book.BookID, target, dir)
		if err != nil {
			f.Close()
			return nil, err
		}
		return f, nil
	}

	source := ""
	for _, candidate := range formatPreference {
		if hasFormat(book.available, candidate) {
			source = candidate
			break
		}
	}
	if source == "" || l.converter == nil {
		f.Close()
		return nil, fmt.Errorf("%w: book %d has formats %v", ErrNoReadableFormat, book.BookID, book.available)
	}

	src, err := l.client.Download(ctx, book.BookID, source, dir)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.Path, err = l.converter.Convert(ctx, src, dir, strings.ToLower(targetExt))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("converting %s to %s: %w", source, targetExt, err)
	}
	return f, nil
}

func hasFormat(formats []string, want string) bool {
	for _, f := range formats {
		if f == want {
			return true
		}
	}
	return false
}
