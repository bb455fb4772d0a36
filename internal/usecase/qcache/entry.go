package qcache

import "time"

// Entry is one cached answer. A single JSON value holds the answer together
// with its question embedding so a concurrent lookup never observes a
// partially written pair.
type Entry struct {
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Embedding    []float32 `json:"embedding"`
	ContextCount int       `json:"context_count"`
	CreatedAt    time.Time `json:"created_at"`
}
