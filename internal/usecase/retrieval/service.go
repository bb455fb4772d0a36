// Package retrieval implements hybrid lexical+vector ranking over the review
// corpus with candidate-size-based strategy selection.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/parklens/revq/internal/domain"
	"github.com/parklens/revq/internal/metrics"
)

// Strategy names the vector search mode a retrieval used.
type Strategy string

const (
	// StrategyIDRestricted restricts the index search to the candidate ids.
	StrategyIDRestricted Strategy = "id_restricted"
	// StrategyFullSearch searches the whole index and post-filters.
	StrategyFullSearch Strategy = "full_search"
	// StrategyLexicalOnly means no vector search contributed to the ranking.
	StrategyLexicalOnly Strategy = "lexical_only"
)

// Tuning holds the fusion constants. Defaults preserve the documented
// behavior; change them only together with the callers that depend on it.
type Tuning struct {
	StrategyMultiplier int
	LexicalWeight      float64
	VectorWeight       float64
	PhraseBoost        float64
}

// DefaultTuning returns the stock fusion constants.
func DefaultTuning() Tuning {
	return Tuning{
		StrategyMultiplier: 5,
		LexicalWeight:      0.4,
		VectorWeight:       0.6,
		PhraseBoost:        1.5,
	}
}

// Ranked is one retrieval result with its fused and component scores.
type Ranked struct {
	Review       domain.Review
	Score        float64
	LexicalScore float64
	VectorScore  float64
}

// Service is the hybrid retrieval engine.
type Service struct {
	records  CandidateSource
	index    VectorIndex
	embedder domain.Embedder
	tuning   Tuning
	logger   *zap.Logger
}

// NewService creates a retrieval service with default tuning.
func NewService(records CandidateSource, index VectorIndex, embedder domain.Embedder, logger *zap.Logger) *Service {
	return &Service{
		records:  records,
		index:    index,
		embedder: embedder,
		tuning:   DefaultTuning(),
		logger:   logger,
	}
}

// WithTuning overrides the fusion constants.
func (s *Service) WithTuning(t Tuning) *Service {
	s.tuning = t
	return s
}

// Retrieve returns up to topK reviews ranked by fused lexical+vector score,
// ties broken by corpus order. A vector-side failure degrades to lexical-only
// ranking; it is logged, never returned. A caller that already embedded the
// query passes queryEmb to skip the second provider call; nil embeds here.
func (s *Service) Retrieve(
	ctx context.Context, query string, queryEmb []float32, preds []domain.Predicate, topK int,
) ([]Ranked, Strategy, error) {
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return nil, StrategyLexicalOnly, nil
	}

	candidates := s.records.Filter(preds)
	if len(candidates) == 0 {
		return nil, StrategyLexicalOnly, nil
	}

	lexical := make(map[string]float64, len(candidates))
	inCandidates := make(map[string]struct{}, len(candidates))
	for _, r := range candidates {
		lexical[r.ID] = LexicalScore(query, r.Text, s.tuning.PhraseBoost)
		inCandidates[r.ID] = struct{}{}
	}

	vector, strategy := s.vectorScores(ctx, query, queryEmb, candidates, inCandidates, topK)
	metrics.RetrievalStrategyTotal.WithLabelValues(string(strategy)).Inc()

	// An id absent from both signals never enters the ranking.
	ranked := make([]Ranked, 0, len(candidates))
	for _, r := range candidates {
		lex := lexical[r.ID]
		vec, hasVec := vector[r.ID]
		if lex == 0 && !hasVec {
			continue
		}
		ranked = append(ranked, Ranked{
			Review:       r,
			Score:        s.tuning.LexicalWeight*lex + s.tuning.VectorWeight*vec,
			LexicalScore: lex,
			VectorScore:  vec,
		})
	}

	// Stable sort keeps corpus order for equal scores (first seen wins).
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, strategy, nil
}

// vectorScores consults the index with the query embedding, computing it
// first when the caller did not supply one. The candidate pool size decides
// the mode: a pool of at least topK x multiplier is restricted directly, a
// smaller one gets a wider unrestricted search plus post-filter.
func (s *Service) vectorScores(
	ctx context.Context,
	query string,
	queryEmb []float32,
	candidates []domain.Review,
	inCandidates map[string]struct{},
	topK int,
) (map[string]float64, Strategy) {
	if queryEmb == nil {
		emb, err := s.embedder.Embed(ctx, query)
		if err != nil {
			s.logger.Warn("query embedding failed, falling back to lexical ranking", zap.Error(err))
			return nil, StrategyLexicalOnly
		}
		queryEmb = emb.Embedding
	}

	var (
		hits     []domain.VectorHit
		strategy Strategy
		err      error
	)
	if len(candidates) >= topK*s.tuning.StrategyMultiplier {
		strategy = StrategyIDRestricted
		ids := make([]string, len(candidates))
		for i, r := range candidates {
			ids[i] = r.ID
		}
		hits, err = s.index.Query(ctx, queryEmb, 2*topK, ids)
	} else {
		strategy = StrategyFullSearch
		hits, err = s.index.Query(ctx, queryEmb, 3*topK, nil)
	}
	if err != nil {
		s.logger.Warn("vector search failed, falling back to lexical ranking",
			zap.String("strategy", string(strategy)), zap.Error(err))
		return nil, StrategyLexicalOnly
	}

	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		// Post-filter: ids outside the candidate set (or unknown to the
		// corpus) are dropped, and the best similarity per id wins.
		if _, ok := inCandidates[h.ID]; !ok {
			continue
		}
		if _, seen := scores[h.ID]; !seen {
			scores[h.ID] = h.Similarity
		}
	}
	return scores, strategy
}
