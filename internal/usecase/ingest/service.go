// Package ingest embeds and indexes reviews that are not yet present in the
// vector index. It runs once at startup; already-indexed reviews are skipped
// so restarts do not re-embed the corpus.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parklens/revq/internal/domain"
	"github.com/parklens/revq/internal/repository/vector"
)

// Index is the vector index contract consumed by ingest.
type Index interface {
	EnsureIndex(ctx context.Context) error
	Has(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, docs []vector.Doc) error
}

// Service backfills the vector index from the review corpus.
type Service struct {
	embedder domain.Embedder
	index    Index
	batch    int
	parallel int
	logger   *zap.Logger
}

// NewService creates an ingest service. batch is the embedding request size,
// parallel the number of concurrent embedding requests.
func NewService(embedder domain.Embedder, index Index, batch, parallel int, logger *zap.Logger) *Service {
	if batch <= 0 {
		batch = 64
	}
	if parallel <= 0 {
		parallel = 4
	}
	return &Service{
		embedder: embedder,
		index:    index,
		batch:    batch,
		parallel: parallel,
		logger:   logger,
	}
}

// Run indexes every review missing from the vector index and returns how
// many were ingested.
func (s *Service) Run(ctx context.Context, reviews []domain.Review) (int, error) {
	if err := s.index.EnsureIndex(ctx); err != nil {
		return 0, fmt.Errorf("ensure index: %w", err)
	}

	missing, err := s.findMissing(ctx, reviews)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		s.logger.Info("vector index up to date", zap.Int("reviews", len(reviews)))
		return 0, nil
	}

	s.logger.Info("ingesting reviews into vector index",
		zap.Int("missing", len(missing)), zap.Int("total", len(reviews)))

	var ingested atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)

	for start := 0; start < len(missing); start += s.batch {
		end := min(start+s.batch, len(missing))
		chunk := missing[start:end]

		g.Go(func() error {
			if err := s.ingestBatch(gctx, chunk); err != nil {
				return err
			}
			ingested.Add(int64(len(chunk)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(ingested.Load()), err
	}

	s.logger.Info("ingest complete", zap.Int64("ingested", ingested.Load()))
	return int(ingested.Load()), nil
}

func (s *Service) findMissing(ctx context.Context, reviews []domain.Review) ([]domain.Review, error) {
	var missing []domain.Review
	for _, r := range reviews {
		exists, err := s.index.Has(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("check review %s: %w", r.ID, err)
		}
		if !exists {
			missing = append(missing, r)
		}
	}
	return missing, nil
}

func (s *Service) ingestBatch(ctx context.Context, chunk []domain.Review) error {
	texts := make([]string, len(chunk))
	for i, r := range chunk {
		texts[i] = r.Text
	}

	res, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(chunk) {
		return fmt.Errorf("embed batch: got %d vectors for %d reviews", len(res.Embeddings), len(chunk))
	}

	docs := make([]vector.Doc, len(chunk))
	for i, r := range chunk {
		docs[i] = vector.Doc{ID: r.ID, Vector: res.Embeddings[i]}
	}
	if err := s.index.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	return nil
}
