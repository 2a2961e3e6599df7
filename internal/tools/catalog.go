// ABOUTME: Tool names, descriptions and parameter lists in catalogue order
// ABOUTME: tools/list shows tools in exactly this order

package tools

import "github.com/2389/shelf-gateway/internal/mcp"

const libraryTypeHint = "library_type: 'anx' (the user's reading library) or 'calibre' (the shared library)."

const searchDescription = `Search books using Calibre's search syntax. Supports simple fuzzy search and advanced field queries.
Basic search (fuzzy match): just give keywords. Example: "Three Body"
Advanced search (complex queries):
- Field search: field_name:"value". Examples: title:"Pride and Prejudice" or author:Austen. Common fields: title, authors, tags, series, publisher, pubdate, comments, rating, date, size, formats, last_modified. Custom columns start with # (examples: #library:"My Lib", #readdate:>=2023-01-15).
- Boolean operators: combine conditions with AND, OR, NOT (or &, |, !). Examples: tags:fiction AND tags:classic, or title:history NOT author:Jones.
- Comparison operators: use <, >, <=, >=, = on numeric or date fields. Examples: pubdate:>2020-01-01 or rating:>=4.
- Wildcards: * matches any sequence of characters, ? matches one character. Examples: title:hist* or author:Sm?th.
- Regular expressions: field_name:~"regex". Example: title:~"war.*peace".`

var (
	paramBookID        = mcp.Param{Name: "book_id", Type: mcp.ParamInteger}
	paramLibraryType   = mcp.Param{Name: "library_type", Type: mcp.ParamString}
	paramLimit         = mcp.Param{Name: "limit", Type: mcp.ParamInteger}
	paramTaskID        = mcp.Param{Name: "task_id", Type: mcp.ParamString}
	paramChapterNumber = mcp.Param{Name: "chapter_number", Type: mcp.ParamInteger}
)

// Tools returns the catalogue bound to c's services.
func (c *Catalog) Tools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "generate_audiobook",
			Description: "Generate an audiobook for a book. library_type must be 'anx' (the user's reading library) or 'calibre' (the shared library).",
			Params:      []mcp.Param{paramBookID, paramLibraryType},
			Handler:     c.generateAudiobook,
		},
		{
			Name:        "get_audiobook_generation_status",
			Description: "Get the status and progress of an audiobook generation task by task ID.",
			Params:      []mcp.Param{paramTaskID},
			Handler:     c.audiobookStatus,
		},
		{
			Name:        "get_audiobook_status_by_book",
			Description: "Get the latest audiobook task status for a book by book ID and library type. " + libraryTypeHint,
			Params:      []mcp.Param{paramBookID, paramLibraryType},
			Handler:     c.audiobookStatusByBook,
		},
		{
			Name:        "search_calibre_books",
			Description: searchDescription,
			Params:      []mcp.Param{{Name: "search_expression", Type: mcp.ParamString}, paramLimit},
			Handler:     c.searchCalibreBooks,
		},
		{
			Name:        "get_recent_books",
			Description: "List the most recently added books in a library. " + libraryTypeHint,
			Params:      []mcp.Param{paramLibraryType, paramLimit},
			Handler:     c.recentBooks,
		},
		{
			Name:        "get_book_details",
			Description: "Get the details of one book in a library. " + libraryTypeHint,
			Params:      []mcp.Param{paramLibraryType, paramBookID},
			Handler:     c.bookDetails,
		},
		{
			Name:        "push_calibre_book_to_anx",
			Description: "Push a Calibre book into the current user's Anx library (the reading library).",
			Params:      []mcp.Param{paramBookID},
			Handler:     c.pushCalibreToAnx,
		},
		{
			Name:        "push_anx_book_to_calibre",
			Description: "Upload a book from the user's Anx library (the reading library) to the shared Calibre library.",
			Params:      []mcp.Param{paramBookID},
			Handler:     c.pushAnxToCalibre,
		},
		{
			Name:        "send_calibre_book_to_kindle",
			Description: "Send a Calibre book to the Kindle email address configured for the current user.",
			Params:      []mcp.Param{paramBookID},
			Handler:     c.sendToKindle,
		},
		{
			Name:        "get_table_of_contents",
			Description: "Get the chapter list of a book. Books that are not EPUB are converted automatically. " + libraryTypeHint,
			Params:      []mcp.Param{paramLibraryType, paramBookID},
			Handler:     c.tableOfContents,
		},
		{
			Name:        "get_chapter_content",
			Description: "Get the full text of one chapter of a book. Books that are not EPUB are converted automatically. " + libraryTypeHint,
			Params:      []mcp.Param{paramLibraryType, paramBookID, paramChapterNumber},
			Handler:     c.chapterContent,
		},
		{
			Name:        "get_entire_book_content",
			Description: "Get the complete plain text of a book with paragraph breaks kept. " + libraryTypeHint,
			Params:      []mcp.Param{paramLibraryType, paramBookID},
			Handler:     c.entireBookContent,
		},
		{
			Name:        "get_word_count_statistics",
			Description: "Get word count statistics for a book, per chapter and in total. " + libraryTypeHint,
			Params:      []mcp.Param{paramLibraryType, paramBookID},
			Handler:     c.wordCountStatistics,
		},
		{
			Name:        "get_user_reading_stats",
			Description: `Get reading statistics for the current user. time_range is required and can be "all", "today", "this_week", "this_month", "this_year", a number of recent days (such as "7" or "30"), or a date range "YYYY-MM-DD:YYYY-MM-DD".`,
			Params:      []mcp.Param{{Name: "time_range", Type: mcp.ParamString}},
			Handler:     c.userReadingStats,
		},
	}
}
