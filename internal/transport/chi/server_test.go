package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"

	"github.com/parklens/revq/internal/domain"
	"github.com/parklens/revq/internal/usecase/retrieval"
)

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	r := chirouter.NewRouter()
	s.Routes(r)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestQuery_HappyPath(t *testing.T) {
	retriever := &fakeRetriever{
		ranked: []retrieval.Ranked{
			{Review: domain.Review{ID: "1", Text: "staff were friendly"}},
		},
		strategy: retrieval.StrategyFullSearch,
	}
	s := newTestServer(retriever, &fakeGenerator{answer: "Guests praise the staff."}, nil, true)

	rr := serve(s, "POST", "/query", `{"question":"Is the staff friendly?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Question       string `json:"question"`
		Answer         string `json:"answer"`
		NumReviewsUsed int    `json:"num_reviews_used"`
		Strategy       string `json:"strategy"`
		Cached         bool   `json:"cached"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Guests praise the staff." || resp.NumReviewsUsed != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Strategy != "full_search" || resp.Cached {
		t.Errorf("unexpected strategy/cached %+v", resp)
	}
}

func TestQuery_SecondCallHitsCache(t *testing.T) {
	retriever := &fakeRetriever{strategy: retrieval.StrategyLexicalOnly}
	s := newTestServer(retriever, &fakeGenerator{answer: "cached answer"}, nil, true)

	first := serve(s, "POST", "/query", `{"question":"How is the food?"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first call failed: %d", first.Code)
	}

	second := serve(s, "POST", "/query", `{"question":"How is the food?"}`)
	if second.Code != http.StatusOK {
		t.Fatalf("second call failed: %d", second.Code)
	}
	var resp struct {
		Answer string `json:"answer"`
		Cached bool   `json:"cached"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Cached || resp.Answer != "cached answer" {
		t.Errorf("expected cached replay, got %+v", resp)
	}
}

func TestQuery_ValidationErrors(t *testing.T) {
	s := newTestServer(&fakeRetriever{}, &fakeGenerator{}, nil, true)

	for _, body := range []string{`{"question":"  "}`, `not json`} {
		rr := serve(s, "POST", "/query", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestQuery_GeneratorFailureIs502(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("completion API error 500: %w", domain.ErrAnswerProviderError)}
	s := newTestServer(&fakeRetriever{}, gen, nil, true)

	rr := serve(s, "POST", "/query", `{"question":"anything"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestQuery_NotReadyIs503(t *testing.T) {
	s := newTestServer(&fakeRetriever{}, &fakeGenerator{}, nil, false)

	rr := serve(s, "POST", "/query", `{"question":"anything"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestQuery_KeywordDetection(t *testing.T) {
	retriever := &fakeRetriever{}
	s := newTestServer(retriever, &fakeGenerator{answer: "a"}, nil, true)

	rr := serve(s, "POST", "/query",
		`{"question":"Do visitors from Australia like Hong Kong?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	if len(retriever.gotPreds) != 2 {
		t.Fatalf("expected 2 predicates, got %+v", retriever.gotPreds)
	}
	if retriever.gotPreds[0].Field != domain.FieldBranch || retriever.gotPreds[0].Value != "Hong_Kong" {
		t.Errorf("unexpected branch predicate %+v", retriever.gotPreds[0])
	}
	if retriever.gotPreds[1].Field != domain.FieldReviewerLocation || retriever.gotPreds[1].Value != "Australia" {
		t.Errorf("unexpected location predicate %+v", retriever.gotPreds[1])
	}
}

func TestQuery_ExplicitFiltersOverrideDetection(t *testing.T) {
	retriever := &fakeRetriever{}
	s := newTestServer(retriever, &fakeGenerator{answer: "a"}, nil, true)

	rr := serve(s, "POST", "/query",
		`{"question":"Is the Paris park busy?","branch":"California"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(retriever.gotPreds) != 1 || retriever.gotPreds[0].Value != "California" {
		t.Errorf("explicit branch must win over detection: %+v", retriever.gotPreds)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeRetriever{}, &fakeGenerator{}, nil, true)
	rr := serve(s, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	degraded := newTestServer(&fakeRetriever{}, &fakeGenerator{}, errors.New("down"), true)
	rr = serve(degraded, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for degraded service, got %d", rr.Code)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	s := newTestServer(&fakeRetriever{}, &fakeGenerator{answer: "a"}, nil, true)

	if rr := serve(s, "POST", "/query", `{"question":"q"}`); rr.Code != http.StatusOK {
		t.Fatalf("seed query failed: %d", rr.Code)
	}

	rr := serve(s, "GET", "/cache/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", rr.Code)
	}
	var stats struct {
		Entries int `json:"entries"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}

	rr = serve(s, "POST", "/cache/clear", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("clear failed: %d", rr.Code)
	}
	var cleared struct {
		Cleared int `json:"cleared"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &cleared); err != nil {
		t.Fatalf("decode clear: %v", err)
	}
	if cleared.Cleared != 1 {
		t.Errorf("expected 1 cleared, got %d", cleared.Cleared)
	}

	rr = serve(s, "GET", "/cache/stats", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 0 {
		t.Errorf("expected empty cache after clear, got %d", stats.Entries)
	}
}
