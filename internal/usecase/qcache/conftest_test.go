package qcache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parklens/revq/internal/db"
	"github.com/parklens/revq/internal/domain"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type kvItem struct {
	value     []byte
	expiresAt time.Time
}

// fakeKV is an in-memory KV store honoring per-key TTL against the fake clock.
type fakeKV struct {
	clock   *fakeClock
	mu      sync.Mutex
	items   map[string]kvItem
	setErr  error
	scanErr error
	getErr  error
}

func newFakeKV(clock *fakeClock) *fakeKV {
	return &fakeKV{clock: clock, items: map[string]kvItem{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[key]
	if !ok || !f.clock.Now().Before(item.expiresAt) {
		return nil, db.ErrKeyNotFound
	}
	return item.value, nil
}

func (f *fakeKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = kvItem{value: value, expiresAt: f.clock.Now().Add(ttl)}
	return nil
}

func (f *fakeKV) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	return nil
}

func (f *fakeKV) Scan(_ context.Context, pattern string) ([]string, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key, item := range f.items {
		if strings.HasPrefix(key, prefix) && f.clock.Now().Before(item.expiresAt) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

func (f *fakeEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	for _, t := range texts {
		res, err := f.Embed(ctx, t)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out.Embeddings = append(out.Embeddings, res.Embedding)
	}
	return out, nil
}
