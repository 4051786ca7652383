// Package storage persists articles and analyses in a key-value store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"NewsStream/internal/domain"
	"NewsStream/internal/ports"
)

const (
	articlePrefix  = "article:"
	analysisPrefix = "analysis:"

	// DefaultTTL is the lifetime of every persisted record.
	DefaultTTL = 24 * time.Hour
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("not found")

// Repository implements ports.ArticleRepository over any KeyValueStore.
type Repository struct {
	kv     ports.KeyValueStore
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.ArticleRepository = (*Repository)(nil)

// NewRepository wires a KeyValueStore; a non-positive ttl means DefaultTTL.
func NewRepository(kv ports.KeyValueStore, ttl time.Duration, logger *slog.Logger) *Repository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{kv: kv, ttl: ttl, logger: logger}
}

// ArticleKey is the store key for an article URL.
func ArticleKey(url string) string { return articlePrefix + url }

// AnalysisKey is the store key for an article's analysis.
func AnalysisKey(articleID string) string { return analysisPrefix + articleID }

// Exists reports whether url has been ingested. Store errors read as false.
func (r *Repository) Exists(ctx context.Context, url string) bool {
	ok, err := r.kv.Exists(ctx, ArticleKey(url))
	if err != nil {
		r.logger.Error("store error while checking article", "url", url, "error", err)
		return false
	}
	return ok
}

// Save stores the article and, when present, its analysis as separate records.
func (r *Repository) Save(ctx context.Context, url string, article domain.Article, analysis *domain.AnalysisResult) error {
	payload, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}
	if err := r.kv.SetWithExpiry(ctx, ArticleKey(url), string(payload), r.ttl); err != nil {
		return fmt.Errorf("save article: %w", err)
	}
	if analysis == nil {
		return nil
	}
	return r.SaveAnalysis(ctx, *analysis)
}

// SaveAnalysis stores an analysis under its article id.
func (r *Repository) SaveAnalysis(ctx context.Context, analysis domain.AnalysisResult) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	if err := r.kv.SetWithExpiry(ctx, AnalysisKey(analysis.ArticleID), string(payload), r.ttl); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// GetRecent returns up to count stored articles, newest first. Malformed
// records are skipped and store errors yield an empty result.
func (r *Repository) GetRecent(ctx context.Context, count int) []domain.Article {
	values, err := r.kv.ScanPrefix(ctx, articlePrefix)
	if err != nil {
		r.logger.Error("store error while getting recent articles", "error", err)
		return []domain.Article{}
	}

	articles := make([]domain.Article, 0, len(values))
	for key, value := range values {
		var a domain.Article
		if err := json.Unmarshal([]byte(value), &a); err != nil {
			r.logger.Debug("skip malformed article record", "key", key, "error", err)
			continue
		}
		articles = append(articles, a)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].Timestamp.After(articles[j].Timestamp)
	})
	if count >= 0 && len(articles) > count {
		articles = articles[:count]
	}
	return articles
}

// GetAnalysis returns the analysis for articleID or ErrNotFound.
func (r *Repository) GetAnalysis(ctx context.Context, articleID string) (*domain.AnalysisResult, error) {
	value, err := r.kv.Get(ctx, AnalysisKey(articleID))
	if err != nil {
		return nil, err
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		r.logger.Error("error decoding analysis data", "article_id", articleID, "error", err)
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &result, nil
}

// Clear removes the article namespace; analyses expire on their own.
func (r *Repository) Clear(ctx context.Context) error {
	n, err := r.kv.DeletePrefix(ctx, articlePrefix)
	if err != nil {
		r.logger.Error("store error while clearing cache", "error", err)
		return fmt.Errorf("clear articles: %w", err)
	}
	r.logger.Info("store cache cleared", "deleted", n)
	return nil
}
