package retrieval

import (
	"context"
	"strconv"

	"github.com/parklens/revq/internal/domain"
)

// fakeRecords returns a fixed candidate set regardless of predicates.
type fakeRecords struct {
	reviews []domain.Review
}

func (f *fakeRecords) Filter(_ []domain.Predicate) []domain.Review {
	return f.reviews
}

type fakeIndex struct {
	hits        []domain.VectorHit
	err         error
	calls       int
	gotVec      []float32
	gotK        int
	gotRestrict []string
}

func (f *fakeIndex) Query(_ context.Context, vec []float32, k int, restrictIDs []string) ([]domain.VectorHit, error) {
	f.calls++
	f.gotVec = vec
	f.gotK = k
	f.gotRestrict = restrictIDs
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vec}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = f.vec
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

func reviewCorpus(n int) []domain.Review {
	reviews := make([]domain.Review, n)
	for i := range reviews {
		reviews[i] = domain.Review{
			ID:     strconv.Itoa(i + 1),
			Branch: "Disneyland_Paris",
			Text:   "the park was fine",
		}
	}
	return reviews
}
