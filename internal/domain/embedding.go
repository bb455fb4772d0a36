package domain

import "context"

// EmbeddingResult is a vector plus provider token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds vectors for a batch of inputs, in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text. The same embedder (model and dimensions) must
// serve both cache-key embeddings and retrieval-query embeddings so cosine
// similarities stay comparable across time.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is implemented by collaborators that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// VectorHit is a single vector index match with similarity in [0,1].
type VectorHit struct {
	ID         string
	Similarity float64
}
