// Package normalize turns raw feed entries into canonical articles.
package normalize

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsStream/internal/domain"
)

const (
	maxTitleRunes   = 200
	maxContentRunes = 500

	// DefaultCategory is used when an entry carries no category at all.
	DefaultCategory = "Cryptocurrency"
)

var (
	imgAltDouble = regexp.MustCompile(`<img([^>]*?)alt="[^"]*"([^>]*?)>`)
	imgAltSingle = regexp.MustCompile(`<img([^>]*?)alt='[^']*'([^>]*?)>`)
)

// Normalizer converts domain.Entry values into domain.Article values.
type Normalizer struct {
	defaultCategory string
	now             func() time.Time
	newID           func() string
	logger          *slog.Logger
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the fallback clock.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithIDGenerator overrides article id generation.
func WithIDGenerator(gen func() string) Option {
	return func(n *Normalizer) { n.newID = gen }
}

// New builds a Normalizer; an empty defaultCategory falls back to DefaultCategory.
func New(defaultCategory string, logger *slog.Logger, opts ...Option) *Normalizer {
	if defaultCategory == "" {
		defaultCategory = DefaultCategory
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{
		defaultCategory: defaultCategory,
		now:             time.Now,
		newID:           uuid.NewString,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds the canonical article for entry published by feedURL.
func (n *Normalizer) Normalize(entry domain.Entry, feedURL string) domain.Article {
	ts, ok := ParseDate(entry)
	if !ok {
		ts = n.now().UTC()
		n.logger.Warn("no valid date found in entry, using current UTC time",
			"url", entry.Link, "timestamp", domain.FormatTimestamp(ts))
	}

	return domain.Article{
		ID:         n.newID(),
		Title:      truncate(entry.Title, maxTitleRunes),
		Content:    truncate(CleanContent(entry.Summary), maxContentRunes),
		Source:     SourceHost(feedURL),
		Timestamp:  ts,
		URL:        entry.Link,
		ImageURL:   ExtractImageURL(entry),
		Categories: ExtractCategories(entry, n.defaultCategory),
	}
}

// CleanContent strips alt attributes from img tags, both quote styles.
func CleanContent(content string) string {
	cleaned := imgAltDouble.ReplaceAllString(content, "<img$1$2>")
	return imgAltSingle.ReplaceAllString(cleaned, "<img$1$2>")
}

// SourceHost returns the host component of the feed URL.
func SourceHost(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		parts := strings.Split(feedURL, "/")
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	}
	return u.Host
}

// ExtractCategories prefers tags, then the category field, and never returns
// an empty list.
func ExtractCategories(entry domain.Entry, fallback string) []string {
	categories := uniqueNonEmpty(entry.Tags)

	if len(categories) == 0 {
		values := make([]string, 0, len(entry.Category))
		for _, c := range entry.Category {
			values = append(values, c.Value())
		}
		categories = uniqueNonEmpty(values)
	}

	if len(categories) == 0 {
		categories = []string{fallback}
	}
	return categories
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
