package aggregation

import (
	"fmt"
	"strings"
	"time"
)

// Granularity selects the bucketing strategy used by Bucketize.
type Granularity int

const (
	Hour Granularity = iota + 1
	Day
	ISOWeek
	Month
)

var granularityNames = map[Granularity]string{
	Hour:    "hour",
	Day:     "day",
	ISOWeek: "isoWeek",
	Month:   "month",
}

func (g Granularity) String() string {
	if name, ok := granularityNames[g]; ok {
		return name
	}
	return fmt.Sprintf("Granularity(%d)", int(g))
}

// Valid reports whether g is one of the supported variants.
func (g Granularity) Valid() bool {
	_, ok := granularityNames[g]
	return ok
}

// ParseGranularity accepts the canonical names as well as the report
// names used by the dashboard (hourly, daily, weekly, monthly).
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hour", "hourly", "1h":
		return Hour, nil
	case "day", "daily", "1d":
		return Day, nil
	case "week", "weekly", "isoweek", "iso_week":
		return ISOWeek, nil
	case "month", "monthly":
		return Month, nil
	}
	return 0, fmt.Errorf("invalid granularity: %s", s)
}

// Truncate returns the start of the bucket containing t, evaluated in loc.
func (g Granularity) Truncate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	switch g {
	case Hour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	case Day:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	case ISOWeek:
		// ISO weeks start on Monday.
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	}
	return t
}

// Key formats the bucket key of t. ISO week keys use the week-numbering
// year, so 2024-12-30 renders as 2025-W01.
func (g Granularity) Key(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	switch g {
	case Hour:
		return t.Format("2006-01-02 15:00")
	case Day:
		return t.Format("2006-01-02")
	case ISOWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Month:
		return t.Format("2006-01")
	}
	return t.Format(time.RFC3339)
}

// DefaultSpan returns the start of the trailing window used when a caller
// omits the range start.
func (g Granularity) DefaultSpan(end time.Time) time.Time {
	switch g {
	case Hour:
		return end.Add(-24 * time.Hour)
	case Day:
		return end.AddDate(0, 0, -30)
	case ISOWeek:
		return end.AddDate(0, 0, -12*7)
	case Month:
		return end.AddDate(0, -12, 0)
	}
	return end
}

// ResolveRange fills in a missing range. A zero end means now, a zero
// start means the trailing default window for g ending at end.
func ResolveRange(g Granularity, start, end, now time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = g.DefaultSpan(end)
	}
	return start, end
}
