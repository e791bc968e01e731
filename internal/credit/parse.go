package credit

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.\-]`)
	numericPrefix = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)
)

// ToNumber parses an amount tolerantly: every character other than digits,
// dots and minus signs is dropped and the longest numeric prefix is used.
// Anything unparseable is 0.
func ToNumber(s string) float64 {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	m := numericPrefix.FindString(cleaned)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"1/2/2006 15:04",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// ParseDate parses a loosely formatted calendar date in loc. Zone-less
// layouts are interpreted in loc; RFC3339 values keep their own offset.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CalendarDate reduces t to midnight of its own day in loc.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
