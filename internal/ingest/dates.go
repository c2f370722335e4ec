package ingest

import (
	"regexp"
	"strings"
	"time"
)

var (
	monthYear = regexp.MustCompile(`^\d{1,2}/\d{4}$`)
	bareYear  = regexp.MustCompile(`^\d{4}$`)
)

// dateLayouts are tried in order. Go accepts a fractional second after the
// seconds field even when the layout omits it.
var dateLayouts = []string{
	"2/1/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2006",
	"Jan 2006",
}

// ParseDate normalizes an extracted date. It accepts DD/MM/YYYY, MM/YYYY,
// ISO-8601 (with or without fractional seconds), a bare year and the word
// "present", which maps to now. Anything else reports false.
func ParseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if strings.EqualFold(s, "present") {
		return now.UTC(), true
	}

	if bareYear.MatchString(s) {
		t, err := time.Parse("2006", s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	if monthYear.MatchString(s) {
		s = "01/" + s
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}
