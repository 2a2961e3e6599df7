// ABOUTME: Moves books between the shared Calibre library, a user's Anx library and Kindle
// ABOUTME: Expected failures come back as Result{Success: false}; infrastructure errors as error

package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/library"
)

// Result is what the push and send tools report.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func failed(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// CalibreSource is the part of the Calibre library delivery needs.
type CalibreSource interface {
	Fetch(ctx context.Context, bookID int64, targetExt string) (*library.CalibreBook, *library.BookFile, error)
	AddBook(ctx context.Context, filename string, data []byte) (int64, error)
}

// AnxStore is the part of the Anx library delivery needs.
type AnxStore interface {
	Book(ctx context.Context, username string, id int64) (*library.AnxBook, error)
	FilePath(username string, book *library.AnxBook) (string, error)
	AddBook(ctx context.Context, username string, book *library.AnxBook, src string) error
}

// Config holds the collaborators of a Service. Mailer may be nil, in which
// case Kindle delivery reports that mail is not configured.
type Config struct {
	Calibre CalibreSource
	Anx     AnxStore
	Mailer  Mailer
	Logger  *slog.Logger
}

// Service performs book transfers for a principal.
type Service struct {
	calibre CalibreSource
	anx     AnxStore
	mailer  Mailer
	logger  *slog.Logger
}

// NewService creates a delivery service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		calibre: cfg.Calibre,
		anx:     cfg.Anx,
		mailer:  cfg.Mailer,
		logger:  logger.With("component", "delivery"),
	}
}

// PushCalibreToAnx copies a Calibre book, as EPUB, into the principal's Anx library.
func (s *Service) PushCalibreToAnx(ctx context.Context, p *auth.Principal, bookID int64) (Result, error) {
	book, file, err := s.calibre.Fetch(ctx, bookID, "epub")
	if res, ok := expectedFailure(err, bookID); ok {
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	defer file.Close()

	anxBook := &library.AnxBook{
		Title:       book.Title,
		Author:      strings.Join(book.Authors, " & "),
		Description: book.Comments,
	}
	if err := s.anx.AddBook(ctx, p.Username, anxBook, file.Path); err != nil {
		return Result{}, fmt.Errorf("adding to anx library: %w", err)
	}

	s.logger.Info("pushed book to anx", "user_id", p.ID, "calibre_id", bookID, "anx_id", anxBook.BookID)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Book '%s' has been pushed to your Anx library.", book.Title),
	}, nil
}

// PushAnxToCalibre uploads one of the principal's Anx books to the shared Calibre library.
func (s *Service) PushAnxToCalibre(ctx context.Context, p *auth.Principal, bookID int64) (Result, error) {
	book, err := s.anx.Book(ctx, p.Username, bookID)
	if res, ok := expectedFailure(err, bookID); ok {
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}

	path, err := s.anx.FilePath(p.Username, book)
	if err != nil {
		return failed("Book %d has no usable file: %v", bookID, err), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return failed("File for book '%s' is missing.", book.Title), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reading anx book file: %w", err)
	}

	calibreID, err := s.calibre.AddBook(ctx, uploadName(book, path), data)
	if errors.Is(err, library.ErrDuplicateBook) {
		return failed("Book '%s' already exists in the Calibre library.", book.Title), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("uploading to calibre: %w", err)
	}

	s.logger.Info("pushed book to calibre", "user_id", p.ID, "anx_id", bookID, "calibre_id", calibreID)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Book '%s' has been uploaded to Calibre (ID: %d).", book.Title, calibreID),
	}, nil
}

// SendToKindle mails a Calibre book, as EPUB, to the principal's Kindle address.
func (s *Service) SendToKindle(ctx context.Context, p *auth.Principal, bookID int64) (Result, error) {
	if strings.TrimSpace(p.KindleEmail) == "" {
		return failed("No Kindle email is configured for user %s.", p.Username), nil
	}
	if s.mailer == nil {
		return failed("Mail delivery is not configured on this server."), nil
	}

	book, file, err := s.calibre.Fetch(ctx, bookID, "epub")
	if res, ok := expectedFailure(err, bookID); ok {
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	defer file.Close()

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return Result{}, fmt.Errorf("reading book file: %w", err)
	}

	msg := Message{
		To:             p.KindleEmail,
		Subject:        book.Title,
		Body:           kindleBody(book),
		AttachmentName: safeName(book.Title) + ".epub",
		Attachment:     data,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return Result{}, err
	}

	s.logger.Info("sent book to kindle", "user_id", p.ID, "calibre_id", bookID)
	return Result{
		Success: true,
		Message: fmt.Sprintf("Book '%s' has been sent to %s.", book.Title, p.KindleEmail),
	}, nil
}

// expectedFailure turns lookup failures a caller can act on into a Result.
func expectedFailure(err error, bookID int64) (Result, bool) {
	switch {
	case err == nil:
		return Result{}, false
	case errors.Is(err, library.ErrBookNotFound):
		return failed("Book %d was not found.", bookID), true
	case errors.Is(err, library.ErrNoReadableFormat):
		return failed("Book %d has no format that can be converted to EPUB.", bookID), true
	default:
		return Result{}, false
	}
}

func kindleBody(book *library.CalibreBook) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", book.Title)
	if len(book.Authors) > 0 {
		fmt.Fprintf(&sb, "*%s*\n\n", strings.Join(book.Authors, ", "))
	}
	if book.Series != "" {
		fmt.Fprintf(&sb, "Series: %s\n\n", book.Series)
	}
	sb.WriteString("Sent from your shelf.\n")
	return sb.String()
}

// uploadName is the file name Calibre derives its initial metadata from.
func uploadName(book *library.AnxBook, path string) string {
	name := safeName(book.Title)
	if book.Author != "" {
		name += " - " + safeName(book.Author)
	}
	return name + strings.ToLower(filepath.Ext(path))
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "book"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}
