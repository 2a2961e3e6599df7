// ABOUTME: Tests for Calibre metadata formatting
// ABOUTME: Covers id selection, defaults, pubdate trimming, and format listing

package library

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCalibreBook(t *testing.T) {
	raw := json.RawMessage(`{
		"application_id": 42,
		"title": "The Three-Body Problem",
		"authors": ["Liu Cixin"],
		"tags": ["sci-fi"],
		"series": "Remembrance of Earth's Past",
		"publisher": "Tor",
		"pubdate": "2014-11-11T05:00:00+00:00",
		"comments": "<p>First contact.</p>",
		"rating": 8,
		"format_metadata": {"mobi": {"size": 1}, "epub": {"size": 2}},
		"formats": ["EPUB", "MOBI"],
		"uuid": "ignored"
	}`)

	book := FormatCalibreBook(raw)
	require.NotNil(t, book)
	assert.Equal(t, int64(42), book.BookID)
	assert.Equal(t, "The Three-Body Problem", book.Title)
	assert.Equal(t, []string{"Liu Cixin"}, book.Authors)
	assert.Equal(t, "2014-11-11", book.Pubdate)
	assert.Equal(t, float64(8), book.Rating)
	assert.Equal(t, []string{"epub", "mobi"}, book.Formats)
	assert.Equal(t, []string{"EPUB", "MOBI"}, book.available)

	data, err := json.Marshal(book)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"book_id": 42,
		"title": "The Three-Body Problem",
		"authors": ["Liu Cixin"],
		"tags": ["sci-fi"],
		"series": "Remembrance of Earth's Past",
		"publisher": "Tor",
		"pubdate": "2014-11-11",
		"comments": "<p>First contact.</p>",
		"rating": 8,
		"formats": ["epub", "mobi"]
	}`, string(data))
}

func TestFormatCalibreBook_Defaults(t *testing.T) {
	book := FormatCalibreBook(json.RawMessage(`{"id": 7}`))
	require.NotNil(t, book)
	assert.Equal(t, int64(7), book.BookID)
	assert.Equal(t, "N/A", book.Title)
	assert.Equal(t, []string{}, book.Authors)
	assert.Equal(t, []string{}, book.Tags)
	assert.Equal(t, "", book.Pubdate)
	assert.Equal(t, float64(0), book.Rating)
	assert.Equal(t, []string{}, book.Formats)
}

func TestFormatCalibreBook_FallsBackToID(t *testing.T) {
	book := FormatCalibreBook(json.RawMessage(`{"application_id": 0, "id": 9, "title": "x"}`))
	require.NotNil(t, book)
	assert.Equal(t, int64(9), book.BookID)
}

func TestFormatCalibreBook_Rejects(t *testing.T) {
	for _, raw := range []string{``, `null`, `{"title":"no id"}`, `[1,2]`} {
		assert.Nil(t, FormatCalibreBook(json.RawMessage(raw)), raw)
	}
}
