// ABOUTME: Book content tools: table of contents, chapter text, full text and word counts
// ABOUTME: Every tool opens the book as EPUB, converting other formats first

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/epub"
	"github.com/2389/shelf-gateway/internal/library"
	"github.com/2389/shelf-gateway/internal/mcp"
)

// TOCEntry is one line of a table of contents.
type TOCEntry struct {
	ChapterNumber int    `json:"chapter_number"`
	Title         string `json:"title"`
}

// TableOfContents is the result of get_table_of_contents.
type TableOfContents struct {
	LibraryType   string     `json:"library_type"`
	BookID        int64      `json:"book_id"`
	BookTitle     string     `json:"book_title"`
	TotalChapters int        `json:"total_chapters"`
	Chapters      []TOCEntry `json:"chapters"`
}

// ChapterContent is the result of get_chapter_content.
type ChapterContent struct {
	LibraryType   string `json:"library_type"`
	BookID        int64  `json:"book_id"`
	BookTitle     string `json:"book_title"`
	ChapterNumber int    `json:"chapter_number"`
	ChapterTitle  string `json:"chapter_title"`
	Content       string `json:"content"`
}

// BookContent is the result of get_entire_book_content.
type BookContent struct {
	LibraryType string `json:"library_type"`
	BookID      int64  `json:"book_id"`
	BookTitle   string `json:"book_title"`
	FullText    string `json:"full_text"`
}

// ChapterWordCount is the word count of one chapter.
type ChapterWordCount struct {
	ChapterNumber int    `json:"chapter_number"`
	ChapterTitle  string `json:"chapter_title"`
	WordCount     int    `json:"word_count"`
}

// WordCountStatistics is the result of get_word_count_statistics.
type WordCountStatistics struct {
	LibraryType       string             `json:"library_type"`
	BookID            int64              `json:"book_id"`
	BookTitle         string             `json:"book_title"`
	TotalWordCount    int                `json:"total_word_count"`
	ChapterStatistics []ChapterWordCount `json:"chapter_statistics"`
}

// bookText is a parsed book ready for the content tools.
type bookText struct {
	libraryType string
	bookID      int64
	title       string
	chapters    []epub.Chapter
}

// readBook resolves the library, opens the book and parses its chapters.
// A non-nil reply means the call ends with that reply.
func (c *Catalog) readBook(ctx context.Context, p *auth.Principal, args mcp.Arguments, action string) (*bookText, any, error) {
	raw, err := args.String("library_type")
	if err != nil {
		return nil, nil, err
	}
	bookID, err := args.Int("book_id")
	if err != nil {
		return nil, nil, err
	}
	lib, err := c.libs.For(raw)
	if err != nil {
		return nil, errorReply{Error: invalidLibraryType}, nil
	}

	file, err := lib.OpenBook(ctx, p, bookID)
	if err != nil {
		return nil, errorf("Error getting %s: %v", action, err), nil
	}
	defer file.Close()

	chapters, err := c.chapters(file.Path)
	if err != nil {
		return nil, errorf("Error getting %s: %v", action, err), nil
	}

	c.logger.Debug("parsed book", "library_type", raw, "book_id", bookID, "chapters", len(chapters))
	return &bookText{
		libraryType: raw,
		bookID:      bookID,
		title:       library.Title(ctx, lib, p, bookID),
		chapters:    chapters,
	}, nil, nil
}

func (c *Catalog) tableOfContents(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	book, reply, err := c.readBook(ctx, p, args, "table of contents")
	if book == nil {
		return reply, err
	}

	entries := make([]TOCEntry, len(book.chapters))
	for i, ch := range book.chapters {
		entries[i] = TOCEntry{ChapterNumber: i + 1, Title: ch.Title}
	}
	return TableOfContents{
		LibraryType:   book.libraryType,
		BookID:        book.bookID,
		BookTitle:     book.title,
		TotalChapters: len(entries),
		Chapters:      entries,
	}, nil
}

func (c *Catalog) chapterContent(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	n, err := args.Int("chapter_number")
	if err != nil {
		return nil, err
	}
	book, reply, err := c.readBook(ctx, p, args, "chapter content")
	if book == nil {
		return reply, err
	}

	if n < 1 || n > int64(len(book.chapters)) {
		return errorf("Invalid chapter number %d, valid range: 1-%d", n, len(book.chapters)), nil
	}
	ch := book.chapters[n-1]
	return ChapterContent{
		LibraryType:   book.libraryType,
		BookID:        book.bookID,
		BookTitle:     book.title,
		ChapterNumber: int(n),
		ChapterTitle:  ch.Title,
		Content:       ch.Content,
	}, nil
}

func (c *Catalog) entireBookContent(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	book, reply, err := c.readBook(ctx, p, args, "book content")
	if book == nil {
		return reply, err
	}

	var sb strings.Builder
	for i, ch := range book.chapters {
		fmt.Fprintf(&sb, "--- Chapter %d: %s ---\n\n%s\n\n", i+1, ch.Title, ch.Content)
	}
	return BookContent{
		LibraryType: book.libraryType,
		BookID:      book.bookID,
		BookTitle:   book.title,
		FullText:    sb.String(),
	}, nil
}

func (c *Catalog) wordCountStatistics(ctx context.Context, p *auth.Principal, args mcp.Arguments) (any, error) {
	book, reply, err := c.readBook(ctx, p, args, "word count statistics")
	if book == nil {
		return reply, err
	}

	result := WordCountStatistics{
		LibraryType:       book.libraryType,
		BookID:            book.bookID,
		BookTitle:         book.title,
		ChapterStatistics: make([]ChapterWordCount, len(book.chapters)),
	}
	for i, ch := range book.chapters {
		count := epub.CountWords(ch.Content)
		result.ChapterStatistics[i] = ChapterWordCount{ChapterNumber: i + 1, ChapterTitle: ch.Title, WordCount: count}
		result.TotalWordCount += count
	}
	return result, nil
}
