// Package feed downloads and parses RSS/Atom feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"

	"NewsStream/internal/domain"
	"NewsStream/internal/ports"
)

const defaultUserAgent = "NewsStream/1.0 (+https://github.com/newsstream)"

// Fetcher retrieves feeds over HTTP and parses them with gofeed.
type Fetcher struct {
	http       *http.Client
	parser     *gofeed.Parser
	userAgent  string
	baseDelay  time.Duration
	maxRetries int
	sleep      Sleeper
	logger     *slog.Logger
}

var _ ports.FeedFetcher = (*Fetcher)(nil)

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.http = c }
}

// WithSleeper replaces the wait used between attempts.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) { f.sleep = s }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// NewFetcher creates a fetcher that waits baseDelay, 2*baseDelay, ... between
// at most maxRetries retries.
func NewFetcher(timeout, baseDelay time.Duration, maxRetries int, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		http:       &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		userAgent:  defaultUserAgent,
		baseDelay:  baseDelay,
		maxRetries: maxRetries,
		sleep:      sleepContext,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the entries of feedURL, retrying transport failures and
// non-2xx responses with exponential back-off. It returns ErrRetriesExhausted
// once every attempt has failed. A body that cannot be parsed is not retried.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]domain.Entry, error) {
	policy := NewRetryPolicy(f.baseDelay, f.maxRetries)
	attempt := 0

	for {
		attempt++
		entries, err := f.fetchOnce(ctx, feedURL)
		if err == nil {
			return entries, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			f.logger.Error("feed not parseable", "feed", feedURL, "attempts", attempt, "error", permanent.Err)
			return nil, fmt.Errorf("%s: %w", feedURL, permanent.Err)
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			f.logger.Error("feed fetch failed after retries", "feed", feedURL, "attempts", attempt, "error", err)
			return nil, fmt.Errorf("%w: %s: %v", ErrRetriesExhausted, feedURL, err)
		}

		f.logger.Warn("feed fetch failed, retrying", "feed", feedURL, "attempt", attempt, "wait", wait, "error", err)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, feedURL string) ([]domain.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: %v", ErrUnparseable, err))
	}
	if parsed == nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: empty document", ErrUnparseable))
	}

	entries := make([]domain.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toEntry(item))
	}
	return entries, nil
}
