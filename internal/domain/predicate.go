package domain

import (
	"strings"
	"unicode"
)

// PredicateKind selects how a predicate value is compared against a field.
type PredicateKind int

const (
	// PredicateEquals matches when the normalized values are equal.
	PredicateEquals PredicateKind = iota
	// PredicateContains matches when the normalized field value contains the
	// normalized predicate value as a substring.
	PredicateContains
)

// PredicateField enumerates review attributes usable in filter predicates.
type PredicateField string

const (
	// FieldBranch filters on the park branch.
	FieldBranch PredicateField = "branch"
	// FieldReviewerLocation filters on the reviewer's home location.
	FieldReviewerLocation PredicateField = "reviewer_location"
	// FieldRating filters on the review rating.
	FieldRating PredicateField = "rating"
)

// Predicate is a single attribute condition. A review enters the candidate
// set only when it satisfies every predicate (logical AND).
type Predicate struct {
	Field PredicateField
	Kind  PredicateKind
	Value string
}

// Matches reports whether the review satisfies the predicate.
// An empty predicate value matches everything.
func (p Predicate) Matches(r Review) bool {
	var field string
	switch p.Field {
	case FieldBranch:
		field = r.Branch
	case FieldReviewerLocation:
		field = r.ReviewerLocation
	case FieldRating:
		field = r.Rating
	default:
		return false
	}

	value := NormalizeAttr(p.Value)
	if value == "" {
		return true
	}
	field = NormalizeAttr(field)

	switch p.Kind {
	case PredicateEquals:
		return field == value
	case PredicateContains:
		return strings.Contains(field, value)
	default:
		return false
	}
}

// NormalizeAttr lowercases s and strips everything except letters and digits,
// so "Hong_Kong", "hong kong" and "HongKong" all compare equal.
func NormalizeAttr(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
