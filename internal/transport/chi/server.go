// Package chi exposes the question answering service over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parklens/revq/internal/domain"
	answeruc "github.com/parklens/revq/internal/usecase/answer"
	healthuc "github.com/parklens/revq/internal/usecase/health"
	"github.com/parklens/revq/internal/usecase/qcache"
)

// Server wires the use case services into HTTP handlers.
type Server struct {
	answers *answeruc.Service
	cache   *qcache.Service
	health  *healthuc.Service
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	answers *answeruc.Service,
	cache *qcache.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		answers: answers,
		cache:   cache,
		health:  health,
		logger:  logger,
	}
}

// Routes registers all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/query", s.handleQuery)
	r.Get("/health", s.handleHealth)
	r.Get("/cache/stats", s.handleCacheStats)
	r.Post("/cache/clear", s.handleCacheClear)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// queryRequest is the POST /query body. Branch and location override the
// keyword detection derived from the question.
type queryRequest struct {
	Question string `json:"question"`
	Branch   string `json:"branch,omitempty"`
	Location string `json:"location,omitempty"`
}

type queryResponse struct {
	Question         string  `json:"question"`
	Answer           string  `json:"answer"`
	NumReviewsUsed   int     `json:"num_reviews_used"`
	Strategy         string  `json:"strategy,omitempty"`
	Cached           bool    `json:"cached"`
	CacheSimilarity  float64 `json:"cache_similarity,omitempty"`
	OriginalQuestion string  `json:"original_question,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.health.Ready() {
		writeError(w, http.StatusServiceUnavailable, "service is still indexing reviews")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	preds := buildPredicates(req)

	resp, err := s.answers.Answer(r.Context(), req.Question, preds)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Question:         resp.Question,
		Answer:           resp.Answer,
		NumReviewsUsed:   resp.ContextCount,
		Strategy:         string(resp.Strategy),
		Cached:           resp.Cached,
		CacheSimilarity:  resp.CacheSimilarity,
		OriginalQuestion: resp.OriginalQuestion,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.cache.Stats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache unavailable")
		return
	}

	resp := map[string]any{"entries": st.EntryCount}
	if st.EntryCount > 0 {
		resp["oldest_entry"] = st.Oldest.UTC().Format(time.RFC3339)
		resp["newest_entry"] = st.Newest.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.cache.Clear(r.Context())
	if err != nil {
		s.logger.Error("cache clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAnswerProviderError):
		s.logger.Warn("answer provider error", zap.Error(err))
		writeError(w, http.StatusBadGateway, domain.ErrAnswerProviderError.Error())
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, domain.ErrNotReady.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// buildPredicates turns explicit filters, or park/location keywords detected
// in the question, into review predicates.
func buildPredicates(req queryRequest) []domain.Predicate {
	branch := req.Branch
	location := req.Location

	q := strings.ToLower(req.Question)
	if branch == "" {
		switch {
		case strings.Contains(q, "hong kong"):
			branch = "Hong_Kong"
		case strings.Contains(q, "california"):
			branch = "California"
		case strings.Contains(q, "paris"):
			branch = "Paris"
		}
	}
	if location == "" && strings.Contains(q, "australia") {
		location = "Australia"
	}

	var preds []domain.Predicate
	if branch != "" {
		preds = append(preds, domain.Predicate{
			Field: domain.FieldBranch,
			Kind:  domain.PredicateContains,
			Value: branch,
		})
	}
	if location != "" {
		preds = append(preds, domain.Predicate{
			Field: domain.FieldReviewerLocation,
			Kind:  domain.PredicateContains,
			Value: location,
		})
	}
	return preds
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
