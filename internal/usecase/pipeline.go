package usecase

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"NewsStream/internal/buffer"
	"NewsStream/internal/domain"
	"NewsStream/internal/normalize"
	"NewsStream/internal/ports"
)

const (
	defaultEntriesPerFeed = 3
	defaultAnalysisSlots  = 4
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Repository     ports.ArticleRepository
	Analyzer       ports.Analyzer
	Broadcaster    ports.Broadcaster
	Buffer         *buffer.Buffer
	Normalizer     *normalize.Normalizer
	EntriesPerFeed int
	AnalysisSlots  int
	Logger         *slog.Logger
}

// Pipeline implements the dedup, persist, buffer and broadcast workflow for
// the entries of one feed.
type Pipeline struct {
	repository     ports.ArticleRepository
	analyzer       ports.Analyzer
	broadcaster    ports.Broadcaster
	buffer         *buffer.Buffer
	normalizer     *normalize.Normalizer
	entriesPerFeed int
	slots          *semaphore.Weighted
	inflight       sync.WaitGroup
	logger         *slog.Logger
}

// NewPipeline constructs the ingestion component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = normalize.New("", logger)
	}
	perFeed := deps.EntriesPerFeed
	if perFeed <= 0 {
		perFeed = defaultEntriesPerFeed
	}
	slots := deps.AnalysisSlots
	if slots <= 0 {
		slots = defaultAnalysisSlots
	}
	return &Pipeline{
		repository:     deps.Repository,
		analyzer:       deps.Analyzer,
		broadcaster:    deps.Broadcaster,
		buffer:         deps.Buffer,
		normalizer:     normalizer,
		entriesPerFeed: perFeed,
		slots:          semaphore.NewWeighted(int64(slots)),
		logger:         logger,
	}
}

// Ingest accepts the newest entries of one feed that neither the buffer nor
// the store has seen, persists them, merges them into the buffer and
// broadcasts them in feed order. Analyses are requested in the background.
func (p *Pipeline) Ingest(ctx context.Context, feed domain.FeedEntries) []domain.Article {
	entries := feed.Entries
	if len(entries) > p.entriesPerFeed {
		entries = entries[:p.entriesPerFeed]
	}

	accepted := make([]domain.Article, 0, len(entries))
	for _, entry := range entries {
		if entry.Link == "" {
			p.logger.Debug("skip entry without link", "feed", feed.FeedURL, "title", entry.Title)
			continue
		}
		if p.buffer != nil && p.buffer.Contains(entry.Link) {
			continue
		}
		if p.repository.Exists(ctx, entry.Link) {
			continue
		}

		article := p.normalizer.Normalize(entry, feed.FeedURL)
		if err := p.repository.Save(ctx, entry.Link, article, nil); err != nil {
			p.logger.Error("persist article failed", "url", entry.Link, "error", err)
			continue
		}
		accepted = append(accepted, article)
	}

	if len(accepted) == 0 {
		return accepted
	}

	if p.buffer != nil {
		p.buffer.Add(accepted...)
	}
	p.logger.Info("new articles ingested", "feed", feed.FeedURL, "count", len(accepted))

	for _, article := range accepted {
		if p.broadcaster != nil {
			p.broadcaster.Broadcast(domain.ArticleEvent(article))
		}
		p.dispatchAnalysis(ctx, article)
	}
	return accepted
}

// WaitAnalyses blocks until background analyses finish or ctx is done.
func (p *Pipeline) WaitAnalyses(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) dispatchAnalysis(ctx context.Context, article domain.Article) {
	if p.analyzer == nil {
		return
	}
	actx := context.WithoutCancel(ctx)

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		if err := p.slots.Acquire(actx, 1); err != nil {
			return
		}
		defer p.slots.Release(1)

		p.analyze(actx, article)
	}()
}

func (p *Pipeline) analyze(ctx context.Context, article domain.Article) {
	result, err := p.analyzer.Analyze(ctx, article)
	if err != nil {
		p.logger.Warn("analysis unavailable", "article_id", article.ID, "error", err)
		return
	}
	if result == nil {
		return
	}

	if err := p.repository.SaveAnalysis(ctx, *result); err != nil {
		p.logger.Error("persist analysis failed", "article_id", article.ID, "error", err)
		return
	}
	if p.broadcaster != nil {
		p.broadcaster.Broadcast(domain.AnalysisEvent(*result))
	}
}
