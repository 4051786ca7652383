package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"NewsStream/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryRepo struct {
	mu       sync.Mutex
	articles map[string]domain.Article
	analyses map[string]domain.AnalysisResult
	saveErr  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		articles: map[string]domain.Article{},
		analyses: map[string]domain.AnalysisResult{},
	}
}

func (r *memoryRepo) Exists(_ context.Context, url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.articles[url]
	return ok
}

func (r *memoryRepo) Save(_ context.Context, url string, a domain.Article, analysis *domain.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.articles[url] = a
	if analysis != nil {
		r.analyses[analysis.ArticleID] = *analysis
	}
	return nil
}

func (r *memoryRepo) SaveAnalysis(_ context.Context, a domain.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses[a.ArticleID] = a
	return nil
}

func (r *memoryRepo) GetRecent(_ context.Context, count int) []domain.Article {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Article, 0, len(r.articles))
	for _, a := range r.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > count {
		out = out[:count]
	}
	return out
}

func (r *memoryRepo) GetAnalysis(_ context.Context, id string) (*domain.AnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyses[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &a, nil
}

func (r *memoryRepo) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.articles = map[string]domain.Article{}
	return nil
}

func (r *memoryRepo) analysisCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.analyses)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBroadcaster) Broadcast(e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBroadcaster) snapshot() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Event(nil), b.events...)
}

type stubAnalyzer struct {
	result func(domain.Article) (*domain.AnalysisResult, error)
}

func (s stubAnalyzer) Analyze(_ context.Context, a domain.Article) (*domain.AnalysisResult, error) {
	return s.result(a)
}

type stubFetcher struct {
	mu      sync.Mutex
	entries map[string][]domain.Entry
	errs    map[string]error
	panics  map[string]bool
	calls   []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]domain.Entry, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.panics[url] {
		panic("malformed feed: " + url)
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.entries[url], nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type stubMemory struct {
	allow bool
}

func (m stubMemory) Allow() bool      { return m.allow }
func (m stubMemory) UsageMB() float64 { return 42 }

func entry(link string, published time.Time) domain.Entry {
	return domain.Entry{
		Link:      link,
		Title:     "title " + link,
		Summary:   "summary",
		Published: published.UTC().Format(time.RFC1123Z),
	}
}
