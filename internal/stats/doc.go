// Package stats turns the Anx reader's reading-time log into per-day and
// per-book statistics for a time_range expression.
package stats
