// Package epub reads the text of EPUB books.
//
// Chapters follows the container's package document: every XHTML document in
// the spine that has text becomes one Chapter, titled from the NCX (EPUB 2) or
// the nav document (EPUB 3). CountWords gives the per-chapter word counts
// reported to MCP clients.
package epub
