// Package delivery moves books out of a library: from the shared Calibre
// library into a user's Anx library, from Anx back to Calibre, and to a
// user's Kindle by mail. It also provides the ebook-convert Converter used
// when a book has no EPUB.
package delivery
