// ABOUTME: The fixed MCP tool catalogue of the library gateway
// ABOUTME: Binds each tool's parameters to the library, delivery, audiobook and stats services

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/shelf-gateway/internal/audiobook"
	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/delivery"
	"github.com/2389/shelf-gateway/internal/epub"
	"github.com/2389/shelf-gateway/internal/library"
	"github.com/2389/shelf-gateway/internal/mcp"
	"github.com/2389/shelf-gateway/internal/stats"
)

const (
	defaultLimit       = 20
	invalidLibraryType = "Invalid library type. Use 'calibre' or 'anx'."
)

// CalibreSearcher searches the shared library.
type CalibreSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]*library.CalibreBook, error)
}

// Deliverer moves books between libraries and to Kindle.
type Deliverer interface {
	PushCalibreToAnx(ctx context.Context, p *auth.Principal, bookID int64) (delivery.Result, error)
	PushAnxToCalibre(ctx context.Context, p *auth.Principal, bookID int64) (delivery.Result, error)
	SendToKindle(ctx context.Context, p *auth.Principal, bookID int64) (delivery.Result, error)
}

// Audiobooks submits and reports audiobook tasks.
type Audiobooks interface {
	Submit(ctx context.Context, p *auth.Principal, bookID int64, libType library.Type) (any, error)
	Status(ctx context.Context, p *auth.Principal, taskID string) (any, error)
	LatestForBook(ctx context.Context, p *auth.Principal, bookID int64, libType string) (any, error)
}

// ReadingStats reports a user's reading statistics.
type ReadingStats interface {
	UserStats(ctx context.Context, username, timeRange string) (stats.Report, error)
}

var (
	_ CalibreSearcher = (*library.CalibreLibrary)(nil)
	_ Deliverer       = (*delivery.Service)(nil)
	_ Audiobooks      = (*audiobook.Service)(nil)
	_ ReadingStats    = (*stats.Service)(nil)
)

// ChapterReader extracts chapters from a local EPUB file.
type ChapterReader func(path string) ([]epub.Chapter, error)

// Deps are the services the tools call.
type Deps struct {
	Libraries  *library.Libraries
	Calibre    CalibreSearcher
	Delivery   Deliverer
	Audiobooks Audiobooks
	Stats      ReadingStats
	// Chapters defaults to epub.Chapters.
	Chapters ChapterReader
	Logger   *slog.Logger
}

// Catalog holds the bound tool handlers.
type Catalog struct {
	libs       *library.Libraries
	calibre    CalibreSearcher
	delivery   Deliverer
	audiobooks Audiobooks
	stats      ReadingStats
	chapters   ChapterReader
	logger     *slog.Logger
}

// New creates the catalogue.
func New(d Deps) *Catalog {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chapters := d.Chapters
	if chapters == nil {
		chapters = epub.Chapters
	}
	return &Catalog{
		libs:       d.Libraries,
		calibre:    d.Calibre,
		delivery:   d.Delivery,
		audiobooks: d.Audiobooks,
		stats:      d.Stats,
		chapters:   chapters,
		logger:     logger.With("component", "tools"),
	}
}

// NewRegistry builds the registry of all tools.
func NewRegistry(d Deps) (*mcp.Registry, error) {
	return mcp.NewRegistry(New(d).Tools()...)
}

// errorReply is a failure reported as a successful tool result.
type errorReply struct {
	Error string `json:"error"`
}

func errorf(format string, args ...any) errorReply {
	return errorReply{Error: fmt.Sprintf(format, args...)}
}

// --- audiobooks ---

func (c *Catalog) generateAudiobook(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	bookID, err := args.Int("book_id")
	if err != nil {
		return nil, err
	}
	raw, err := args.String("library_type")
	if err != nil {
		return nil, err
	}
	libType, err := library.ParseType(raw)
	if err != nil {
		return errorReply{Error: invalidLibraryType}, nil
	}
	return c.audiobooks.Submit(ctx, p, bookID, libType)
}

func (c *Catalog) audiobookStatus(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	taskID, err := args.String("task_id")
	if err != nil {
		return nil, err
	}
	return c.audiobooks.Status(ctx, p, taskID)
}

func (c *Catalog) audiobookStatusByBook(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	bookID, err := args.Int("book_id")
	if err != nil {
		return nil, err
	}
	libType, err := args.String("library_type")
	if err != nil {
		return nil, err
	}
	return c.audiobooks.LatestForBook(ctx, p, bookID, libType)
}

// --- library browsing ---

func (c *Catalog) searchCalibreBooks(ctx context.Context, _ *auth.Principal, args mcp.Arguments) (any, error) {
	query, err := args.String("search_expression")
	if err != nil {
		return nil, err
	}
	limit, err := args.IntOr("limit", defaultLimit)
	if err != nil {
		return nil, err
	}
	return c.calibre.Search(ctx, query, int(limit))
}

func (c *Catalog) recentBooks(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	raw, err := args.String("library_type")
	if err != nil {
		return nil, err
	}
	lib, err := c.libs.For(raw)
	if err != nil {
		return errorReply{Error: invalidLibraryType}, nil
	}
	limit, err := args.IntOr("limit", defaultLimit)
	if err != nil {
		return nil, err
	}
	return lib.Recent(ctx, p, int(limit))
}

// bookDetails returns null for a book that does not exist.
func (c *Catalog) bookDetails(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	raw, err := args.String("library_type")
	if err != nil {
		return nil, err
	}
	lib, err := c.libs.For(raw)
	if err != nil {
		return errorReply{Error: invalidLibraryType}, nil
	}
	bookID, err := args.Int("book_id")
	if err != nil {
		return nil, err
	}
	book, err := lib.Details(ctx, p, bookID)
	if errors.Is(err, library.ErrBookNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return book, nil
}

// --- delivery ---

func (c *Catalog) pushCalibreToAnx(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	bookID, err := args.Int("book_id")
	if err != nil {
		return nil, err
	}
	return c.delivery.PushCalibreToAnx(ctx, p, bookID)
}

func (c *Catalog) pushAnxToCalibre(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	bookID, err := args.Int("book_id")
	if err != nil {
		return nil, err
	}
	return c.delivery.PushAnxToCalibre(ctx, p, bookID)
}

func (c *Catalog) sendToKindle(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	bookID, err := args.Int("book_id")
	if err != nil {
		return nil, err
	}
	return c.delivery.SendToKindle(ctx, p, bookID)
}

// --- reading stats ---

func (c *Catalog) userReadingStats(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	timeRange, err := args.String("time_range")
	if err != nil {
		return nil, err
	}
	report, err := c.stats.UserStats(ctx, p.Username, timeRange)
	if errors.Is(err, stats.ErrInvalidRange) {
		return errorReply{Error: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}
