package normalize

import (
	"net/mail"
	"strings"
	"time"

	"NewsStream/internal/domain"
)

// isoLayouts are tried after RFC 2822; layouts without an offset are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate resolves the entry timestamp from published, pubDate, updated and
// created, in that order. It reports false when none of them parses.
func ParseDate(entry domain.Entry) (time.Time, bool) {
	for _, raw := range []string{entry.Published, entry.PubDate, entry.Updated, entry.Created} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := mail.ParseDate(raw); err == nil {
			return t, true
		}
		if t, ok := parseISO(raw); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseISO(raw string) (time.Time, bool) {
	if strings.HasSuffix(raw, "Z") || strings.HasSuffix(raw, "z") {
		raw = raw[:len(raw)-1] + "+00:00"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
