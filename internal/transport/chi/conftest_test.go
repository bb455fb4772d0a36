package chi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parklens/revq/internal/db"
	"github.com/parklens/revq/internal/domain"
	answeruc "github.com/parklens/revq/internal/usecase/answer"
	healthuc "github.com/parklens/revq/internal/usecase/health"
	"github.com/parklens/revq/internal/usecase/qcache"
	"github.com/parklens/revq/internal/usecase/retrieval"
)

type fakeRetriever struct {
	ranked   []retrieval.Ranked
	strategy retrieval.Strategy
	gotPreds []domain.Predicate
}

func (f *fakeRetriever) Retrieve(
	_ context.Context, _ string, _ []float32, preds []domain.Predicate, _ int,
) ([]retrieval.Ranked, retrieval.Strategy, error) {
	f.gotPreds = preds
	return f.ranked, f.strategy, nil
}

type fakeGenerator struct {
	answer string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, _ []domain.Review) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

func (fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0}
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

// memKV is a minimal in-memory KV backend for the cache service.
type memKV struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemKV() *memKV { return &memKV{items: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memKV) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// newTestServer assembles a server from real services over fakes.
func newTestServer(retriever *fakeRetriever, gen *fakeGenerator, pingErr error, ready bool) *Server {
	logger := zap.NewNop()
	cache := qcache.NewService(newMemKV(), fakeEmbedder{}, logger)
	answers := answeruc.NewService(retriever, cache, gen, 10, logger)
	health := healthuc.New(&fakePinger{err: pingErr}, nil)
	if ready {
		health.SetReady()
	}
	return NewServer(answers, cache, health, logger)
}
