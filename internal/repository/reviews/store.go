// Package reviews holds the immutable in-memory review corpus and its
// attribute-predicate filtering.
package reviews

import "github.com/parklens/revq/internal/domain"

// Store owns the review collection. It is populated once at startup and
// read-only afterwards, so it is shared across requests without locking.
type Store struct {
	all  []domain.Review
	byID map[string]int
}

// NewStore builds a store over the given reviews. The slice order is the
// stable "first-seen" order used for ranking tie-breaks. When two reviews
// carry the same id the first one wins and later rows are dropped, so an id
// occurs at most once in All and Filter results.
func NewStore(all []domain.Review) *Store {
	deduped := make([]domain.Review, 0, len(all))
	byID := make(map[string]int, len(all))
	for _, r := range all {
		if _, ok := byID[r.ID]; ok {
			continue
		}
		byID[r.ID] = len(deduped)
		deduped = append(deduped, r)
	}
	return &Store{all: deduped, byID: byID}
}

// Len returns the corpus size.
func (s *Store) Len() int { return len(s.all) }

// All returns the full corpus in load order. Callers must not mutate it.
func (s *Store) All() []domain.Review { return s.all }

// Get returns the review with the given id.
func (s *Store) Get(id string) (domain.Review, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.Review{}, false
	}
	return s.all[i], true
}

// Filter returns the reviews satisfying all predicates, preserving load
// order. No predicates means the whole corpus. The operation is a pure scan:
// filtering an already-filtered result with the same predicates returns the
// same set.
func (s *Store) Filter(preds []domain.Predicate) []domain.Review {
	if len(preds) == 0 {
		return s.all
	}

	var out []domain.Review
	for _, r := range s.all {
		if matchesAll(r, preds) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(r domain.Review, preds []domain.Predicate) bool {
	for _, p := range preds {
		if !p.Matches(r) {
			return false
		}
	}
	return true
}
