package retrieval

import (
	"context"

	"github.com/parklens/revq/internal/domain"
)

// CandidateSource filters the review corpus into a candidate set.
type CandidateSource interface {
	Filter(preds []domain.Predicate) []domain.Review
}

// VectorIndex answers similarity queries, optionally restricted to an id subset.
type VectorIndex interface {
	Query(ctx context.Context, vec []float32, k int, restrictIDs []string) ([]domain.VectorHit, error)
}
