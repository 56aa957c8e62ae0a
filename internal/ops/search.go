package ops

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// MaxQueryLength bounds search queries, in characters.
const MaxQueryLength = 500

// Date ranges accepted by Search.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
)

// SearchInput contains parameters for the Search operation.
// The query may be empty when at least the filters narrow the result.
type SearchInput struct {
	Query         string
	SummaryType   string // optional filter
	DateRange     string // optional: today, week, month
	FavoritesOnly bool
	Limit         int // default: 20, max: 100
	Offset        int // default: 0
}

// Search filters saved summaries by a case-insensitive substring of title,
// channel or content, plus type, creation date and favorite filters.
// Results are newest first.
func Search(ctx context.Context, rt *Runtime, input SearchInput) (*ListOutput, error) {
	query := strings.TrimSpace(input.Query)
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}

	f := db.Filters{Query: query, FavoritesOnly: input.FavoritesOnly}

	if t := strings.TrimSpace(input.SummaryType); t != "" {
		if !summary.Type(t).Valid() {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown summary_type %q (valid: %v)", t, summary.AllTypes()))
		}
		f.Type = summary.Type(t)
	}

	if r := strings.TrimSpace(input.DateRange); r != "" {
		since, err := rangeStart(r, rt.now())
		if err != nil {
			return nil, err
		}
		f.Since = &since
	}

	return listFiltered(ctx, rt, f, input.Limit, input.Offset)
}

// rangeStart returns the earliest creation time a date range admits.
// "today" is the calendar day in now's location; week and month are rolling
// 7 and 30 day windows.
func rangeStart(r string, now time.Time) (int64, error) {
	switch r {
	case RangeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Unix(), nil
	case RangeWeek:
		return now.Add(-7 * 24 * time.Hour).Unix(), nil
	case RangeMonth:
		return now.Add(-30 * 24 * time.Hour).Unix(), nil
	}
	return 0, errors.NewInvalidRequest(fmt.Sprintf("date_range must be one of: %s, %s, %s", RangeToday, RangeWeek, RangeMonth))
}
