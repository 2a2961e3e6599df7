// ABOUTME: Reading statistics over a user's Anx tb_reading_time rows
// ABOUTME: Parses time_range expressions and aggregates per day and per book

package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/2389/shelf-gateway/internal/library"
)

// ErrInvalidRange indicates a time_range expression could not be parsed.
var ErrInvalidRange = errors.New("invalid time range")

const dateLayout = "2006-01-02"

// Range is an inclusive date interval. Empty bounds are open.
type Range struct {
	Start string
	End   string
}

// ParseRange interprets expr relative to now's calendar date. Accepted forms:
// all, today, this_week (from Monday), this_month, this_year, a positive day
// count N (the last N days including today), and YYYY-MM-DD:YYYY-MM-DD.
func ParseRange(expr string, now time.Time) (Range, error) {
	expr = strings.TrimSpace(expr)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := today.Format(dateLayout)

	switch expr {
	case "all":
		return Range{}, nil
	case "today":
		return Range{Start: end, End: end}, nil
	case "this_week":
		offset := (int(today.Weekday()) + 6) % 7
		return Range{Start: today.AddDate(0, 0, -offset).Format(dateLayout), End: end}, nil
	case "this_month":
		return Range{Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).Format(dateLayout), End: end}, nil
	case "this_year":
		return Range{Start: time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location()).Format(dateLayout), End: end}, nil
	}

	if n, err := strconv.Atoi(expr); err == nil {
		if n <= 0 {
			return Range{}, fmt.Errorf("%w: day count must be positive, got %d", ErrInvalidRange, n)
		}
		return Range{Start: today.AddDate(0, 0, -(n - 1)).Format(dateLayout), End: end}, nil
	}

	if from, to, ok := strings.Cut(expr, ":"); ok {
		start, err1 := time.Parse(dateLayout, strings.TrimSpace(from))
		stop, err2 := time.Parse(dateLayout, strings.TrimSpace(to))
		if err1 != nil || err2 != nil {
			return Range{}, fmt.Errorf("%w: %q (dates must be YYYY-MM-DD)", ErrInvalidRange, expr)
		}
		if stop.Before(start) {
			return Range{}, fmt.Errorf("%w: %q ends before it starts", ErrInvalidRange, expr)
		}
		return Range{Start: start.Format(dateLayout), End: stop.Format(dateLayout)}, nil
	}

	return Range{}, fmt.Errorf("%w: %q (use all, today, this_week, this_month, this_year, a number of days, or YYYY-MM-DD:YYYY-MM-DD)", ErrInvalidRange, expr)
}

// DailyStat is the reading time of one day.
type DailyStat struct {
	Date        string `json:"date"`
	Seconds     int64  `json:"reading_seconds"`
	ReadingTime string `json:"reading_time"`
}

// BookStat is the reading time spent on one book.
type BookStat struct {
	BookID      int64  `json:"book_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Seconds     int64  `json:"reading_seconds"`
	ReadingTime string `json:"reading_time"`
	DaysRead    int    `json:"days_read"`
}

// Report is the result of get_user_reading_stats.
type Report struct {
	TimeRange           string      `json:"time_range"`
	StartDate           string      `json:"start_date"`
	EndDate             string      `json:"end_date"`
	TotalReadingSeconds int64       `json:"total_reading_seconds"`
	TotalReadingTime    string      `json:"total_reading_time"`
	BooksRead           int         `json:"books_read"`
	DaysActive          int         `json:"days_active"`
	Daily               []DailyStat `json:"daily"`
	Books               []BookStat  `json:"books"`
}

// Aggregate builds a report from sessions. For an open range the reported
// dates are the first and last days with reading.
func Aggregate(expr string, r Range, sessions []library.ReadingSession) Report {
	report := Report{
		TimeRange: expr,
		StartDate: r.Start,
		EndDate:   r.End,
		Daily:     []DailyStat{},
		Books:     []BookStat{},
	}

	daily := map[string]int64{}
	books := map[int64]*BookStat{}
	bookDays := map[int64]map[string]bool{}

	for _, s := range sessions {
		if s.Seconds <= 0 {
			continue
		}
		report.TotalReadingSeconds += s.Seconds
		daily[s.Date] += s.Seconds

		b, ok := books[s.BookID]
		if !ok {
			b = &BookStat{BookID: s.BookID, Title: s.Title, Author: s.Author}
			books[s.BookID] = b
			bookDays[s.BookID] = map[string]bool{}
		}
		b.Seconds += s.Seconds
		bookDays[s.BookID][s.Date] = true
	}

	for date, secs := range daily {
		report.Daily = append(report.Daily, DailyStat{Date: date, Seconds: secs, ReadingTime: FormatDuration(secs)})
	}
	sort.Slice(report.Daily, func(i, j int) bool { return report.Daily[i].Date < report.Daily[j].Date })

	for id, b := range books {
		b.ReadingTime = FormatDuration(b.Seconds)
		b.DaysRead = len(bookDays[id])
		if b.Title == "" {
			b.Title = "N/A"
		}
		report.Books = append(report.Books, *b)
	}
	sort.Slice(report.Books, func(i, j int) bool {
		if report.Books[i].Seconds != report.Books[j].Seconds {
			return report.Books[i].Seconds > report.Books[j].Seconds
		}
		return report.Books[i].BookID < report.Books[j].BookID
	})

	report.TotalReadingTime = FormatDuration(report.TotalReadingSeconds)
	report.BooksRead = len(report.Books)
	report.DaysActive = len(report.Daily)

	if n := len(report.Daily); n > 0 {
		if report.StartDate == "" {
			report.StartDate = report.Daily[0].Date
		}
		if report.EndDate == "" {
			report.EndDate = report.Daily[n-1].Date
		}
	}
	return report
}

// FormatDuration renders seconds as "1h 5m 3s", omitting leading zero units.
func FormatDuration(secs int64) string {
	h, m, s := secs/3600, secs%3600/60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// SessionSource provides reading sessions for a user.
type SessionSource interface {
	ReadingSessions(ctx context.Context, username, from, to string) ([]library.ReadingSession, error)
}

// Service computes reading statistics.
type Service struct {
	source SessionSource
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a stats service reading from source.
func NewService(source SessionSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, now: time.Now, logger: logger.With("component", "stats")}
}

// UserStats returns the report for username over the time_range expression.
// Returns ErrInvalidRange for an unparseable expression.
func (s *Service) UserStats(ctx context.Context, username, expr string) (Report, error) {
	r, err := ParseRange(expr, s.now())
	if err != nil {
		return Report{}, err
	}
	sessions, err := s.source.ReadingSessions(ctx, username, r.Start, r.End)
	if err != nil {
		return Report{}, fmt.Errorf("reading sessions: %w", err)
	}
	s.logger.Debug("computed reading stats", "username", username, "time_range", expr, "sessions", len(sessions))
	return Aggregate(expr, r, sessions), nil
}
