package normalize

import (
	"strings"
	"time"
)

// dateLayouts lists the formats seen in email headers and LLM output, tried
// in order. German emails commonly use dotted day-first dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// ParseDate parses a free-form date phrase. It returns ok=false for
// unparsable input; the caller keeps the record and marks the date unknown
// rather than failing.
func ParseDate(raw string) (time.Time, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
