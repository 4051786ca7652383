// Package buffer keeps the most recent articles in memory, newest first.
package buffer

import (
	"sort"
	"sync"
	"time"

	"NewsStream/internal/domain"
)

// Buffer is a bounded, timestamp-sorted window of recent articles.
type Buffer struct {
	mu       sync.RWMutex
	articles []domain.Article
	capacity int
	required int
	ready    bool
}

// New creates an empty, not-ready buffer holding at most capacity articles.
// required is the count reported to clients as the full target.
func New(capacity, required int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	if required <= 0 {
		required = capacity
	}
	return &Buffer{capacity: capacity, required: required}
}

// Seed replaces the contents and marks the buffer ready, even when articles
// is empty.
func (b *Buffer) Seed(articles []domain.Article) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.articles = make([]domain.Article, 0, len(articles))
	b.appendUnique(articles)
	b.sortAndTrim()
	b.ready = true
}

// Add merges a batch of newly accepted articles, skipping URLs already
// buffered, and returns how many were added. A non-empty batch marks the
// buffer ready.
func (b *Buffer) Add(articles ...domain.Article) int {
	if len(articles) == 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	added := b.appendUnique(articles)
	b.sortAndTrim()
	b.ready = true
	return added
}

// Contains reports whether an article with url is buffered.
func (b *Buffer) Contains(url string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.indexOf(url) >= 0
}

func (b *Buffer) appendUnique(articles []domain.Article) int {
	added := 0
	for _, a := range articles {
		if b.indexOf(a.URL) >= 0 {
			continue
		}
		b.articles = append(b.articles, a)
		added++
	}
	return added
}

func (b *Buffer) indexOf(url string) int {
	for i := range b.articles {
		if b.articles[i].URL == url {
			return i
		}
	}
	return -1
}

// RemoveOlderThan drops articles whose timestamp is not after cutoff and
// returns how many were removed.
func (b *Buffer) RemoveOlderThan(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.articles[:0]
	for _, a := range b.articles {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	removed := len(b.articles) - len(kept)
	for i := len(kept); i < len(b.articles); i++ {
		b.articles[i] = domain.Article{}
	}
	b.articles = kept
	return removed
}

// Reset empties the buffer and marks it not ready.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.articles = nil
	b.ready = false
}

// Snapshot returns a copy of the current contents, newest first.
func (b *Buffer) Snapshot() []domain.Article {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Article, len(b.articles))
	copy(out, b.articles)
	return out
}

// Len returns the number of buffered articles.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.articles)
}

// Ready reports whether the buffer has been seeded.
func (b *Buffer) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Capacity is the maximum number of buffered articles.
func (b *Buffer) Capacity() int { return b.capacity }

// Required is the target count reported in buffer status.
func (b *Buffer) Required() int { return b.required }

// Status returns the buffer_status pair sent to clients.
func (b *Buffer) Status() domain.BufferStatus {
	return domain.BufferStatus{Required: b.required, Current: b.Len()}
}

func (b *Buffer) sortAndTrim() {
	sort.SliceStable(b.articles, func(i, j int) bool {
		return b.articles[i].Timestamp.After(b.articles[j].Timestamp)
	})
	if len(b.articles) > b.capacity {
		b.articles = b.articles[:b.capacity]
	}
}
