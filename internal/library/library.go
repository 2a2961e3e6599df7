// ABOUTME: Library type tagged union and the capability interface shared by Calibre and Anx
// ABOUTME: Libraries.For is the single dispatch point from a library_type string to an implementation

package library

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/2389/shelf-gateway/internal/auth"
)

// Library errors
var (
	ErrInvalidLibraryType = errors.New("invalid library type")
	ErrBookNotFound       = errors.New("book not found")
	ErrNoReadableFormat   = errors.New("book has no readable format")
)

// Type identifies a library. Calibre is the shared library; Anx is the
// per-user reading library.
type Type string

const (
	Calibre Type = "calibre"
	Anx     Type = "anx"
)

// ParseType validates a library_type value. Matching is exact.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Calibre, Anx:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %q (use 'calibre' or 'anx')", ErrInvalidLibraryType, s)
	}
}

// Book is a library entry as shown to MCP callers.
type Book interface {
	ID() int64
	DisplayTitle() string
}

// BookFile is a local EPUB copy of a book. Close removes any temporary files
// created to produce it.
type BookFile struct {
	Path    string
	cleanup []string
}

// Close removes temporary files backing the BookFile.
func (f *BookFile) Close() error {
	var errs []error
	for _, p := range f.cleanup {
		if err := os.RemoveAll(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Library is what every library type can do for a principal.
type Library interface {
	Type() Type
	// Recent returns up to limit books, newest first.
	Recent(ctx context.Context, p *auth.Principal, limit int) ([]Book, error)
	// Details returns one book or ErrBookNotFound.
	Details(ctx context.Context, p *auth.Principal, bookID int64) (Book, error)
	// OpenBook returns the book as a local EPUB, converting other formats.
	OpenBook(ctx context.Context, p *auth.Principal, bookID int64) (*BookFile, error)
}

// Converter turns an e-book file into another format, writing the result
// into dstDir and returning its path.
type Converter interface {
	Convert(ctx context.Context, src, dstDir, targetExt string) (string, error)
}

// Libraries holds one implementation per library type.
type Libraries struct {
	calibre Library
	anx     Library
}

// NewLibraries bundles the two implementations.
func NewLibraries(calibre, anx Library) *Libraries {
	return &Libraries{calibre: calibre, anx: anx}
}

// For returns the library for a library_type string.
func (l *Libraries) For(libraryType string) (Library, error) {
	t, err := ParseType(libraryType)
	if err != nil {
		return nil, err
	}
	switch t {
	case Calibre:
		return l.calibre, nil
	default:
		return l.anx, nil
	}
}

// Title returns the book's title, or "N/A" when the book or title is missing.
func Title(ctx context.Context, lib Library, p *auth.Principal, bookID int64) string {
	book, err := lib.Details(ctx, p, bookID)
	if err != nil || book == nil || book.DisplayTitle() == "" {
		return "N/A"
	}
	return book.DisplayTitle()
}
