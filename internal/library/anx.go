// ABOUTME: Per-user Anx reader library backed by the reader app's SQLite database
// ABOUTME: Reads and writes tb_books and reads tb_reading_time using mattn/go-sqlite3

package library

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/2389/shelf-gateway/internal/auth"
)

// anxTimeLayout is the timestamp format the Anx reader writes.
const anxTimeLayout = "2006-01-02T15:04:05.000"

// AnxBook is a row of the reader's tb_books table.
type AnxBook struct {
	BookID            int64   `json:"id"`
	Title             string  `json:"title"`
	Author            string  `json:"author"`
	Description       string  `json:"description"`
	FilePath          string  `json:"file_path"`
	CoverPath         string  `json:"cover_path"`
	ReadingPercentage float64 `json:"reading_percentage"`
	Rating            float64 `json:"rating"`
	GroupID           int64   `json:"group_id"`
	MD5               string  `json:"md5"`
	CreateTime        string  `json:"create_time"`
	UpdateTime        string  `json:"update_time"`
}

// ID returns the Anx book id.
func (b *AnxBook) ID() int64 { return b.BookID }

// DisplayTitle returns the title.
func (b *AnxBook) DisplayTitle() string { return b.Title }

// ReadingSession is one row of tb_reading_time with its book title.
type ReadingSession struct {
	BookID  int64
	Title   string
	Author  string
	Seconds int64
	Date    string // YYYY-MM-DD
}

// AnxLibrary reads each user's Anx database under dataDir/<username>/data.
type AnxLibrary struct {
	dataDir   string
	converter Converter
	logger    *slog.Logger
}

// NewAnxLibrary creates the Anx Library implementation.
func NewAnxLibrary(dataDir string, converter Converter, logger *slog.Logger) *AnxLibrary {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnxLibrary{
		dataDir:   dataDir,
		converter: converter,
		logger:    logger.With("component", "anx"),
	}
}

// Type returns Anx.
func (l *AnxLibrary) Type() Type { return Anx }

// UserDir returns the root of a user's Anx data, where file_path values are relative to.
func (l *AnxLibrary) UserDir(username string) (string, error) {
	if username == "" || username == "." || username == ".." || strings.ContainsAny(username, `/\`) {
		return "", fmt.Errorf("invalid username %q", username)
	}
	return filepath.Join(l.dataDir, username, "data"), nil
}

func (l *AnxLibrary) dbPath(username string) (string, error) {
	dir, err := l.UserDir(username)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "database7.db"), nil
}

// openDB opens a user's database. With create false a missing database is
// reported as os.ErrNotExist; with create true it is created with the schema.
func (l *AnxLibrary) openDB(username string, create bool) (*sql.DB, error) {
	path, err := l.dbPath(username)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || !create {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating anx data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening anx database: %w", err)
	}
	if create {
		if err := ensureAnxSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating anx schema: %w", err)
		}
	}
	return db, nil
}

// ensureAnxSchema creates the reader tables this gateway touches.
func ensureAnxSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tb_books (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			title              TEXT,
			cover_path         TEXT,
			file_path          TEXT,
			last_read_position TEXT,
			reading_percentage REAL,
			author             TEXT,
			is_deleted         INTEGER,
			description        TEXT,
			create_time        TEXT,
			update_time        TEXT,
			rating             REAL DEFAULT 0,
			group_id           INTEGER DEFAULT 0,
			md5                TEXT
		);

		CREATE TABLE IF NOT EXISTS tb_reading_time (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			book_id      INTEGER,
			content      TEXT,
			reading_time INTEGER,
			date         TEXT
		);
	`)
	return err
}

const anxBookColumns = `id, COALESCE(title, ''), COALESCE(author, ''), COALESCE(description, ''),
	COALESCE(file_path, ''), COALESCE(cover_path, ''), COALESCE(reading_percentage, 0),
	COALESCE(rating, 0), COALESCE(group_id, 0), COALESCE(md5, ''),
	COALESCE(create_time, ''), COALESCE(update_time, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnxBook(row rowScanner) (*AnxBook, error) {
	var b AnxBook
	err := row.Scan(&b.BookID, &b.Title, &b.Author, &b.Description, &b.FilePath, &b.CoverPath,
		&b.ReadingPercentage, &b.Rating, &b.GroupID, &b.MD5, &b.CreateTime, &b.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Books returns up to limit of a user's books, newest first. A user without
// a database has no books.
func (l *AnxLibrary) Books(ctx context.Context, username string, limit int) ([]*AnxBook, error) {
	books := []*AnxBook{}
	if limit <= 0 {
		return books, nil
	}

	db, err := l.openDB(username, false)
	if errors.Is(err, os.ErrNotExist) {
		return books, nil
	}
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT `+anxBookColumns+`
		FROM tb_books
		WHERE COALESCE(is_deleted, 0) = 0
		ORDER BY create_time DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying anx books: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanAnxBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning anx book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating anx books: %w", err)
	}
	return books, nil
}

// Book returns one of a user's books. Returns ErrBookNotFound if it does not exist.
func (l *AnxLibrary) Book(ctx context.Context, username string, id int64) (*AnxBook, error) {
	db, err := l.openDB(username, false)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `SELECT `+anxBookColumns+` FROM tb_books WHERE id = ?`, id)
	b, err := scanAnxBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying anx book %d: %w", id, err)
	}
	return b, nil
}

// AddBook copies src into the user's file directory and inserts a tb_books row.
func (l *AnxLibrary) AddBook(ctx context.Context, username string, book *AnxBook, src string) error {
	userDir, err := l.UserDir(username)
	if err != nil {
		return err
	}

	db, err := l.openDB(username, true)
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()
	name := fmt.Sprintf("%s_%d%s", sanitizeFilename(book.Title), now.UnixMilli(), strings.ToLower(filepath.Ext(src)))
	book.FilePath = filepath.ToSlash(filepath.Join("file", name))

	sum, err := copyFile(src, filepath.Join(userDir, book.FilePath))
	if err != nil {
		return fmt.Errorf("copying book file: %w", err)
	}
	book.MD5 = sum
	book.CreateTime = now.Format(anxTimeLayout)
	book.UpdateTime = book.CreateTime

	result, err := db.ExecContext(ctx, `
		INSERT INTO tb_books (title, cover_path, file_path, last_read_position, reading_percentage,
			author, is_deleted, description, create_time, update_time, rating, group_id, md5)
		VALUES (?, ?, ?, '', 0, ?, 0, ?, ?, ?, 0, 0, ?)
	`, book.Title, book.CoverPath, book.FilePath, book.Author, book.Description,
		book.CreateTime, book.UpdateTime, book.MD5)
	if err != nil {
		return fmt.Errorf("inserting anx book: %w", err)
	}
	book.BookID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading anx book id: %w", err)
	}

	l.logger.Info("added book to anx library", "username", username, "book_id", book.BookID, "title", book.Title)
	return nil
}

// FilePath returns the absolute path of a book's file.
func (l *AnxLibrary) FilePath(username string, book *AnxBook) (string, error) {
	userDir, err := l.UserDir(username)
	if err != nil {
		return "", err
	}
	if book.FilePath == "" {
		return "", fmt.Errorf("%w: book %d has no file", ErrNoReadableFormat, book.BookID)
	}
	clean := filepath.Clean(filepath.FromSlash(book.FilePath))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("book %d has an unsafe file path", book.BookID)
	}
	return filepath.Join(userDir, clean), nil
}

// ReadingSessions returns a user's reading time rows with dates in [from, to]
// (inclusive, YYYY-MM-DD). Empty bounds are open.
func (l *AnxLibrary) ReadingSessions(ctx context.Context, username, from, to string) ([]ReadingSession, error) {
	db, err := l.openDB(username, false)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `
		SELECT r.book_id, COALESCE(b.title, ''), COALESCE(b.author, ''),
			COALESCE(r.reading_time, 0), COALESCE(r.date, '')
		FROM tb_reading_time r
		LEFT JOIN tb_books b ON b.id = r.book_id
		WHERE 1 = 1`
	var args []any
	if from != "" {
		query += ` AND substr(r.date, 1, 10) >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND substr(r.date, 1, 10) <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY r.date, r.book_id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reading time: %w", err)
	}
	defer rows.Close()

	var sessions []ReadingSession
	for rows.Next() {
		var s ReadingSession
		if err := rows.Scan(&s.BookID, &s.Title, &s.Author, &s.Seconds, &s.Date); err != nil {
			return nil, fmt.Errorf("scanning reading time: %w", err)
		}
		// The reader stores full timestamps on some versions.
		if len(s.Date) > 10 {
			s.Date = s.Date[:10]
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reading time: %w", err)
	}
	return sessions, nil
}

// Recent implements Library.
func (l *AnxLibrary) Recent(ctx context.Context, p *auth.Principal, limit int) ([]Book, error) {
	books, err := l.Books(ctx, p.Username, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Book, len(books))
	for i, b := range books {
		out[i] = b
	}
	return out, nil
}

// Details implements Library.
func (l *AnxLibrary) Details(ctx context.Context, p *auth.Principal, bookID int64) (Book, error) {
	book, err := l.Book(ctx, p.Username, bookID)
	if err != nil {
		return nil, err
	}
	return book, nil
}

// OpenBook implements Library. EPUB files are used in place; other formats
// are converted into a temporary directory.
func (l *AnxLibrary) OpenBook(ctx context.Context, p *auth.Principal, bookID int64) (*BookFile, error) {
	book, err := l.Book(ctx, p.Username, bookID)
	if err != nil {
		return nil, err
	}
	path, err := l.FilePath(p.Username, book)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("book file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".epub") {
		return &BookFile{Path: path}, nil
	}
	if l.converter == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoReadableFormat, filepath.Ext(path))
	}

	dir, err := os.MkdirTemp("", "shelf-anx-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	f := &BookFile{cleanup: []string{dir}}
	f.Path, err = l.converter.Convert(ctx, path, dir, "epub")
	if err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func copyFile(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	h := md5.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "book"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
}
