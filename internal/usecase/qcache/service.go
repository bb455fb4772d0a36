// Package qcache implements the semantic answer cache: answers to previously
// seen questions are reused for new questions whose embeddings are close
// enough, within a fixed TTL.
package qcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parklens/revq/internal/domain"
)

const keyPrefix = domain.KeyPrefix + "qcache:"

// store is the consumer interface over the durable KV backend (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Hit is a successful cache lookup.
type Hit struct {
	Entry      Entry
	Similarity float64
}

// Stats summarizes the live cache population.
type Stats struct {
	EntryCount int
	Oldest     time.Time
	Newest     time.Time
}

// Service is the semantic answer cache.
type Service struct {
	store     store
	embedder  domain.Embedder
	logger    *zap.Logger
	threshold float64
	ttl       time.Duration
	now       func() time.Time
}

// NewService creates a cache with the stock threshold and TTL.
func NewService(s store, embedder domain.Embedder, logger *zap.Logger) *Service {
	return &Service{
		store:     s,
		embedder:  embedder,
		logger:    logger,
		threshold: 0.95,
		ttl:       24 * time.Hour,
		now:       time.Now,
	}
}

// WithThreshold overrides the similarity threshold.
func (s *Service) WithThreshold(t float64) *Service {
	s.threshold = t
	return s
}

// WithTTL overrides the entry time-to-live.
func (s *Service) WithTTL(ttl time.Duration) *Service {
	s.ttl = ttl
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Lookup scans live entries for the semantically closest prior question and
// returns it when its similarity reaches the threshold. The question
// embedding is returned alongside the outcome so a miss path can reuse it for
// retrieval and the eventual Store instead of re-embedding. Any backend or
// embedding failure is logged and reported as a miss: the cache must never
// block the answering path.
func (s *Service) Lookup(ctx context.Context, question string) (Hit, []float32, bool) {
	emb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		s.logger.Warn("cache lookup: embedding failed", zap.Error(err))
		return Hit{}, nil, false
	}
	qemb := emb.Embedding

	keys, err := s.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		s.logger.Warn("cache lookup: scan failed", zap.Error(err))
		return Hit{}, qemb, false
	}

	var best Hit
	found := false
	for _, key := range keys {
		entry, ok := s.loadLive(ctx, key)
		if !ok {
			continue
		}
		sim := domain.Cosine(qemb, entry.Embedding)
		// strict comparison keeps the first entry on equal similarity
		if !found || sim > best.Similarity {
			best = Hit{Entry: entry, Similarity: sim}
			found = true
		}
	}

	if !found || best.Similarity < s.threshold {
		return Hit{}, qemb, false
	}
	return best, qemb, true
}

// Store writes the answer under a content-derived key with the configured
// TTL. A non-nil emb (typically from the preceding Lookup) is stored as-is,
// a nil one is computed here. Failures are logged and swallowed: caching is
// an optimization, not a correctness dependency.
func (s *Service) Store(ctx context.Context, question, answer string, contextCount int, emb []float32) {
	if emb == nil {
		res, err := s.embedder.Embed(ctx, question)
		if err != nil {
			s.logger.Warn("cache store: embedding failed", zap.Error(err))
			return
		}
		emb = res.Embedding
	}

	entry := Entry{
		Question:     question,
		Answer:       answer,
		Embedding:    emb,
		ContextCount: contextCount,
		CreatedAt:    s.now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("cache store: marshal failed", zap.Error(err))
		return
	}

	if err := s.store.SetWithTTL(ctx, Key(question), data, s.ttl); err != nil {
		s.logger.Warn("cache store: write failed", zap.Error(err))
	}
}

// Clear removes every cache entry. Idempotent: clearing an empty cache
// succeeds with a zero count.
func (s *Service) Clear(ctx context.Context) (int, error) {
	keys, err := s.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, key := range keys {
		if err := s.store.Del(ctx, key); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}

// Stats reports the live (non-expired) cache population.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	keys, err := s.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, key := range keys {
		entry, ok := s.loadLive(ctx, key)
		if !ok {
			continue
		}
		if st.EntryCount == 0 || entry.CreatedAt.Before(st.Oldest) {
			st.Oldest = entry.CreatedAt
		}
		if st.EntryCount == 0 || entry.CreatedAt.After(st.Newest) {
			st.Newest = entry.CreatedAt
		}
		st.EntryCount++
	}
	return st, nil
}

// loadLive fetches and decodes one entry, skipping unreadable, corrupt, or
// expired ones. The created_at check guards against entries the backend has
// not evicted yet.
func (s *Service) loadLive(ctx context.Context, key string) (Entry, bool) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("cache: dropping corrupt entry", zap.String("key", key), zap.Error(err))
		return Entry{}, false
	}

	if !s.now().Before(entry.CreatedAt.Add(s.ttl)) {
		return Entry{}, false
	}
	return entry, true
}

// Key derives the storage key from the normalized question text.
func Key(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return keyPrefix + hex.EncodeToString(sum[:])[:16]
}
