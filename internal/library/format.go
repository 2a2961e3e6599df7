// ABOUTME: Calibre metadata decoding and the trimmed book view returned to MCP callers
// ABOUTME: Keeps only reader-relevant fields and drops entries without an id

package library

import (
	"encoding/json"
	"sort"
	"strings"
)

// CalibreBook is the MCP view of a Calibre book.
type CalibreBook struct {
	BookID    int64    `json:"book_id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Tags      []string `json:"tags"`
	Series    string   `json:"series"`
	Publisher string   `json:"publisher"`
	Pubdate   string   `json:"pubdate"`
	Comments  string   `json:"comments"`
	Rating    float64  `json:"rating"`
	Formats   []string `json:"formats"`

	// available holds the upper-case format names Calibre can serve.
	available []string
}

// ID returns the Calibre book id.
func (b *CalibreBook) ID() int64 { return b.BookID }

// DisplayTitle returns the title.
func (b *CalibreBook) DisplayTitle() string { return b.Title }

// calibreMetadata is the subset of /ajax/book output that FormatCalibreBook reads.
type calibreMetadata struct {
	ApplicationID  *int64                     `json:"application_id"`
	ID             *int64                     `json:"id"`
	Title          *string                    `json:"title"`
	Authors        []string                   `json:"authors"`
	Tags           []string                   `json:"tags"`
	Series         *string                    `json:"series"`
	Publisher      *string                    `json:"publisher"`
	Pubdate        *string                    `json:"pubdate"`
	Comments       *string                    `json:"comments"`
	Rating         *float64                   `json:"rating"`
	FormatMetadata map[string]json.RawMessage `json:"format_metadata"`
	Formats        []string                   `json:"formats"`
}

// FormatCalibreBook converts raw Calibre metadata JSON into a CalibreBook.
// It returns nil for null input or metadata without an id.
func FormatCalibreBook(raw json.RawMessage) *CalibreBook {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var m calibreMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}

	var id int64
	switch {
	case m.ApplicationID != nil && *m.ApplicationID != 0:
		id = *m.ApplicationID
	case m.ID != nil:
		id = *m.ID
	default:
		return nil
	}

	book := &CalibreBook{
		BookID:    id,
		Title:     "N/A",
		Authors:   nonNil(m.Authors),
		Tags:      nonNil(m.Tags),
		Series:    deref(m.Series),
		Publisher: deref(m.Publisher),
		Pubdate:   strings.SplitN(deref(m.Pubdate), "T", 2)[0],
		Comments:  deref(m.Comments),
		Formats:   []string{},
	}
	if m.Title != nil {
		book.Title = *m.Title
	}
	if m.Rating != nil {
		book.Rating = *m.Rating
	}
	for f := range m.FormatMetadata {
		book.Formats = append(book.Formats, f)
	}
	sort.Strings(book.Formats)

	for _, f := range m.Formats {
		book.available = append(book.available, strings.ToUpper(f))
	}
	if len(book.available) == 0 {
		for _, f := range book.Formats {
			book.available = append(book.available, strings.ToUpper(f))
		}
	}
	return book
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
