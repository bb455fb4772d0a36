// Package vector adapts the Redis FT.SEARCH backend into the vector index
// contract consumed by the retrieval engine.
package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/parklens/revq/internal/db"
	"github.com/parklens/revq/internal/domain"
)

const (
	// IndexName is the FT index over review embedding documents.
	IndexName = "idx:revq:reviews"
	docPrefix = domain.KeyPrefix + "review:"
	idTag     = "id"
)

// store is the consumer interface for the vector repository (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig tunes the HNSW graph build.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repository stores review embeddings as Redis hashes and answers KNN
// queries over them.
type Repository struct {
	store store
	dim   int
	hnsw  HNSWConfig
}

// New creates a vector repository for embeddings of the given dimension.
func New(s store, dim int) *Repository {
	return &Repository{store: s, dim: dim}
}

// WithHNSW overrides HNSW build parameters.
func (r *Repository) WithHNSW(cfg HNSWConfig) *Repository {
	r.hnsw = cfg
	return r
}

// Doc is one review embedding to index.
type Doc struct {
	ID     string
	Vector []float32
}

// EnsureIndex creates the FT index when absent. A concurrent creation racing
// past the existence probe is tolerated.
func (r *Repository) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("probe index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{docPrefix},
		Fields: []db.IndexField{
			{Name: idTag, Type: db.IndexFieldTag},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Has reports whether the review id is already indexed.
func (r *Repository) Has(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, docPrefix+id)
	if err != nil {
		return false, fmt.Errorf("probe document: %w", err)
	}
	return ok, nil
}

// Upsert writes a batch of embedding documents in one round-trip.
func (r *Repository) Upsert(ctx context.Context, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(docs))
	for i, d := range docs {
		items[i] = db.HashSetItem{
			Key: docPrefix + d.ID,
			Fields: map[string]string{
				idTag:    d.ID,
				"vector": vectorToBytes(d.Vector),
			},
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert embeddings: %w", err)
	}
	return nil
}

// Query returns up to k nearest reviews for the query vector, optionally
// restricted to the given id subset. Similarities lie in [0,1].
func (r *Repository) Query(
	ctx context.Context, vec []float32, k int, restrictIDs []string,
) ([]domain.VectorHit, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:   IndexName,
		Vector:      vec,
		K:           k,
		RestrictTag: idTag,
		RestrictIDs: restrictIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]domain.VectorHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := e.Fields[idTag]
		if id == "" {
			id = strings.TrimPrefix(e.Key, docPrefix)
		}
		hits = append(hits, domain.VectorHit{ID: id, Similarity: e.Score})
	}
	return hits, nil
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
