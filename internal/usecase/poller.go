package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsStream/internal/buffer"
	"NewsStream/internal/domain"
	"NewsStream/internal/ports"
)

// PollerDeps configures one poll cycle.
type PollerDeps struct {
	Feeds           []string
	Fetcher         ports.FeedFetcher
	Pipeline        *Pipeline
	Memory          ports.MemoryGuard
	Buffer          *buffer.Buffer
	BatchSize       int
	BatchPause      time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
	Now             func() time.Time
	Sleep           func(ctx context.Context, d time.Duration) error
	Logger          *slog.Logger
}

// Poller runs the CheckMemory, batches, cleanup sequence of a poll cycle.
type Poller struct {
	feeds           []string
	fetcher         ports.FeedFetcher
	pipeline        *Pipeline
	memory          ports.MemoryGuard
	buffer          *buffer.Buffer
	batchSize       int
	batchPause      time.Duration
	cleanupInterval time.Duration
	retention       time.Duration
	now             func() time.Time
	sleep           func(ctx context.Context, d time.Duration) error
	lastCleanup     time.Time
	logger          *slog.Logger
}

// NewPoller fills defaults: batches of 3, 2s pause, cleanup every 5 minutes
// dropping buffered articles older than 7 days.
func NewPoller(deps PollerDeps) *Poller {
	p := &Poller{
		feeds:           append([]string(nil), deps.Feeds...),
		fetcher:         deps.Fetcher,
		pipeline:        deps.Pipeline,
		memory:          deps.Memory,
		buffer:          deps.Buffer,
		batchSize:       deps.BatchSize,
		batchPause:      deps.BatchPause,
		cleanupInterval: deps.CleanupInterval,
		retention:       deps.Retention,
		now:             deps.Now,
		sleep:           deps.Sleep,
		logger:          deps.Logger,
	}
	if p.batchSize <= 0 {
		p.batchSize = 3
	}
	if p.batchPause < 0 {
		p.batchPause = 0
	}
	if p.cleanupInterval <= 0 {
		p.cleanupInterval = 5 * time.Minute
	}
	if p.retention <= 0 {
		p.retention = 7 * 24 * time.Hour
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.lastCleanup = p.now()
	return p
}

// RunCycle executes one poll cycle. It never returns an error: failures are
// logged and the next cycle starts fresh.
func (p *Poller) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("error in poll cycle", "panic", fmt.Sprint(r))
		}
	}()
	defer p.logMemory()

	if p.memory != nil && !p.memory.Allow() {
		p.logger.Warn("memory threshold exceeded, skipping polling cycle")
		return
	}

	for start := 0; start < len(p.feeds); start += p.batchSize {
		if ctx.Err() != nil {
			return
		}
		end := min(start+p.batchSize, len(p.feeds))
		p.runBatch(ctx, p.feeds[start:end])

		if end < len(p.feeds) && p.batchPause > 0 {
			if err := p.sleep(ctx, p.batchPause); err != nil {
				return
			}
		}
	}

	p.maybeCleanup()
}

func (p *Poller) runBatch(ctx context.Context, feeds []string) {
	results := make([]domain.FeedEntries, len(feeds))

	var g errgroup.Group
	for i, feedURL := range feeds {
		i, feedURL := i, feedURL
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("panic while fetching feed", "feed", feedURL, "panic", fmt.Sprint(r))
				}
			}()
			p.logger.Debug("processing feed", "feed", feedURL)
			entries, err := p.fetcher.Fetch(ctx, feedURL)
			if err != nil {
				p.logger.Error("feed skipped for this cycle", "feed", feedURL, "error", err)
				return nil
			}
			results[i] = domain.FeedEntries{FeedURL: feedURL, Entries: entries}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if len(res.Entries) == 0 {
			continue
		}
		p.pipeline.Ingest(ctx, res)
	}
}

func (p *Poller) maybeCleanup() {
	now := p.now()
	if now.Sub(p.lastCleanup) < p.cleanupInterval {
		return
	}
	if p.buffer != nil {
		removed := p.buffer.RemoveOlderThan(now.Add(-p.retention))
		if removed > 0 {
			p.logger.Info("removed old articles from buffer", "count", removed)
		}
	}
	p.lastCleanup = now
}

func (p *Poller) logMemory() {
	if p.memory == nil {
		return
	}
	p.logger.Info("memory usage", "usage_mb", fmt.Sprintf("%.1f", p.memory.UsageMB()))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
