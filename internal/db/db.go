// Package db defines the storage contracts implemented by the Redis backend.
package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	KVStore
	HashStore
	IndexManager
	VectorSearcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides key-value operations with per-key expiry.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based document operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	Exists(ctx context.Context, key string) (bool, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// KNNQuery describes a vector similarity search, optionally restricted to an
// explicit id subset via a TAG pre-filter.
type KNNQuery struct {
	IndexName   string
	Vector      []float32
	K           int
	RestrictTag string   // TAG field name carrying the document id
	RestrictIDs []string // empty = unrestricted search
}

// SearchEntry is one FT.SEARCH hit.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult is a parsed FT.SEARCH reply.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// VectorSearcher provides KNN search over an FT index.
type VectorSearcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
