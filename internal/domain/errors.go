package domain

import "errors"

var (
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrAnswerProviderError signals an answer generation failure. This is
	// the only collaborator failure surfaced to callers; retrieval and cache
	// failures degrade locally instead.
	ErrAnswerProviderError = errors.New("answer provider error")
	// ErrNotReady signals that startup ingest has not completed yet.
	ErrNotReady = errors.New("service not ready")
)
