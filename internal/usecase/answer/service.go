// Package answer orchestrates the question answering pipeline: semantic
// cache, hybrid retrieval, answer generation.
package answer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/parklens/revq/internal/domain"
	"github.com/parklens/revq/internal/metrics"
	"github.com/parklens/revq/internal/usecase/qcache"
	"github.com/parklens/revq/internal/usecase/retrieval"
)

// Retriever is the hybrid retrieval engine contract.
type Retriever interface {
	Retrieve(ctx context.Context, query string, queryEmb []float32, preds []domain.Predicate, topK int) ([]retrieval.Ranked, retrieval.Strategy, error)
}

// Cache is the semantic answer cache contract.
type Cache interface {
	Lookup(ctx context.Context, question string) (qcache.Hit, []float32, bool)
	Store(ctx context.Context, question, answer string, contextCount int, emb []float32)
}

// Generator produces an answer grounded on retrieved reviews.
type Generator interface {
	Generate(ctx context.Context, question string, reviews []domain.Review) (string, error)
}

// Response is the answer to one question.
type Response struct {
	Question         string
	Answer           string
	ContextCount     int
	Strategy         retrieval.Strategy
	Cached           bool
	CacheSimilarity  float64
	OriginalQuestion string // the cached question on a semantic (non-exact) hit
}

// Service runs the cache-retrieve-generate pipeline.
type Service struct {
	retriever Retriever
	cache     Cache
	generator Generator
	topK      int
	logger    *zap.Logger
}

// NewService creates the pipeline service.
func NewService(retriever Retriever, cache Cache, generator Generator, topK int, logger *zap.Logger) *Service {
	return &Service{
		retriever: retriever,
		cache:     cache,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Answer resolves the question: a close-enough prior answer is replayed from
// the cache, otherwise retrieval plus generation run and the result is
// cached. Generation failure is the only error surfaced to the caller.
func (s *Service) Answer(ctx context.Context, question string, preds []domain.Predicate) (Response, error) {
	start := time.Now()
	defer func() {
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	// The lookup's question embedding is reused for retrieval and the final
	// store, so a miss costs one provider call instead of three.
	hit, qemb, ok := s.cache.Lookup(ctx, question)
	if ok {
		metrics.AnswerCacheTotal.WithLabelValues("hit").Inc()
		s.logger.Info("answer served from cache",
			zap.Float64("similarity", hit.Similarity),
			zap.String("cached_question", hit.Entry.Question))

		resp := Response{
			Question:        question,
			Answer:          hit.Entry.Answer,
			ContextCount:    hit.Entry.ContextCount,
			Cached:          true,
			CacheSimilarity: hit.Similarity,
		}
		if hit.Entry.Question != question {
			resp.OriginalQuestion = hit.Entry.Question
		}
		return resp, nil
	}
	metrics.AnswerCacheTotal.WithLabelValues("miss").Inc()

	retrieveStart := time.Now()
	ranked, strategy, err := s.retriever.Retrieve(ctx, question, qemb, preds, s.topK)
	metrics.RetrievalDuration.Observe(time.Since(retrieveStart).Seconds())
	if err != nil {
		return Response{}, err
	}

	reviews := make([]domain.Review, len(ranked))
	for i, r := range ranked {
		reviews[i] = r.Review
	}

	text, err := s.generator.Generate(ctx, question, reviews)
	if err != nil {
		return Response{}, err
	}

	s.cache.Store(ctx, question, text, len(reviews), qemb)

	return Response{
		Question:     question,
		Answer:       text,
		ContextCount: len(reviews),
		Strategy:     strategy,
	}, nil
}
