// Package domain holds the core types shared across revq: reviews, filter
// predicates, embedding contracts, and sentinel errors.
package domain

// KeyPrefix namespaces every Redis key written by revq.
const KeyPrefix = "revq:"

// Review is a single guest review. The corpus is loaded once at startup and
// never mutated afterwards, so values are safely shared across goroutines.
type Review struct {
	ID               string
	Branch           string
	Rating           string
	YearMonth        string
	ReviewerLocation string
	Text             string
}
