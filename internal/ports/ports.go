package ports

import (
	"context"
	"time"

	"NewsStream/internal/domain"
)

// FeedFetcher retrieves and parses one feed, retrying transient failures.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]domain.Entry, error)
}

// KeyValueStore is the persistence contract the repository is built on.
type KeyValueStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	ScanPrefix(ctx context.Context, prefix string) (map[string]string, error)
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// ArticleRepository is the dedup gate and article/analysis persistence.
type ArticleRepository interface {
	Exists(ctx context.Context, url string) bool
	Save(ctx context.Context, url string, article domain.Article, analysis *domain.AnalysisResult) error
	SaveAnalysis(ctx context.Context, analysis domain.AnalysisResult) error
	GetRecent(ctx context.Context, count int) []domain.Article
	GetAnalysis(ctx context.Context, articleID string) (*domain.AnalysisResult, error)
	Clear(ctx context.Context) error
}

// Analyzer asks the analysis backend about one article. A nil result with a
// nil error means no analysis is available.
type Analyzer interface {
	Analyze(ctx context.Context, article domain.Article) (*domain.AnalysisResult, error)
}

// Broadcaster fans events out to every connected subscriber.
type Broadcaster interface {
	Broadcast(event domain.Event)
}

// MemoryGuard reports whether there is headroom to run a poll cycle.
type MemoryGuard interface {
	Allow() bool
	UsageMB() float64
}

// Scheduler controls when the poll cycle executes.
type Scheduler interface {
	Start(ctx context.Context, job func(ctx context.Context)) error
	Stop(ctx context.Context) error
}
