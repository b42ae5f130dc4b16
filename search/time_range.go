package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BoundLayout is the layout relative bounds are rendered in. It sorts
// lexicographically alongside stored ISO-8601 timestamps.
const BoundLayout = "2006-01-02T15:04:05Z"

var relativeTimePattern = regexp.MustCompile(`^last\s+(\d+)\s*(h|d|w|m|y|hour|hours|day|days|week|weeks|month|months|year|years)$`)

var absoluteTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
}

// TimeRangeParser resolves human time expressions into timestamp bounds
type TimeRangeParser struct {
	now func() time.Time
}

// NewTimeRangeParser creates a parser reading the wall clock. now may be
// nil.
func NewTimeRangeParser(now func() time.Time) *TimeRangeParser {
	if now == nil {
		now = time.Now
	}
	return &TimeRangeParser{now: now}
}

// ParseRelativeTime parses expressions like "last 24h" or "last 7 days"
// into the instant that far before now. Months and years are approximate.
func (trp *TimeRangeParser) ParseRelativeTime(expr string) (time.Time, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	matches := relativeTimePattern.FindStringSubmatch(expr)
	if len(matches) != 3 {
		return time.Time{}, fmt.Errorf("invalid relative time expression: %s (expected format: 'last 24h' or 'last 7d')", expr)
	}

	amount, err := strconv.Atoi(matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time amount: %s", matches[1])
	}

	var unit time.Duration
	switch matches[2] {
	case "h", "hour", "hours":
		unit = time.Hour
	case "d", "day", "days":
		unit = 24 * time.Hour
	case "w", "week", "weeks":
		unit = 7 * 24 * time.Hour
	case "m", "month", "months":
		unit = 30 * 24 * time.Hour
	default:
		unit = 365 * 24 * time.Hour
	}

	return trp.now().UTC().Add(-time.Duration(amount) * unit), nil
}

// ParseAbsoluteTime checks that expr is an ISO-8601 date or timestamp
func (trp *TimeRangeParser) ParseAbsoluteTime(expr string) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	for _, layout := range absoluteTimeLayouts {
		if t, err := time.Parse(layout, expr); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid absolute time format: %s (expected ISO8601)", expr)
}

// ResolveBound turns expr into the string compared against the timestamp
// column. Relative expressions and "now" are rendered in BoundLayout;
// absolute ones are validated and kept verbatim so that date prefixes such
// as "2024-01" keep matching the stored text. Empty input yields "".
func (trp *TimeRangeParser) ResolveBound(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return "", nil
	case strings.EqualFold(expr, "now"):
		return trp.now().UTC().Format(BoundLayout), nil
	case strings.HasPrefix(strings.ToLower(expr), "last"):
		t, err := trp.ParseRelativeTime(expr)
		if err != nil {
			return "", err
		}
		return t.Format(BoundLayout), nil
	default:
		if _, err := trp.ParseAbsoluteTime(expr); err != nil {
			return "", err
		}
		return expr, nil
	}
}
