package openai

import (
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/parklens/revq/internal/domain"
)

func TestParseAPIError_RequestErrorDetail(t *testing.T) {
	err := parseAPIError("embedding", &openai.RequestError{
		HTTPStatusCode: 429,
		Body:           []byte(`{"detail":"rate limited"}`),
	}, domain.ErrEmbeddingProviderError)

	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected status and detail in message, got %q", err.Error())
	}
}

func TestParseAPIError_APIError(t *testing.T) {
	err := parseAPIError("completion", &openai.APIError{
		HTTPStatusCode: 500,
		Message:        "upstream broke",
	}, domain.ErrAnswerProviderError)

	if !errors.Is(err, domain.ErrAnswerProviderError) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "upstream broke") {
		t.Errorf("expected message in error, got %q", err.Error())
	}
}

func TestParseAPIError_Opaque(t *testing.T) {
	err := parseAPIError("embedding", errors.New("dial tcp: timeout"), domain.ErrEmbeddingProviderError)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestBuildContext(t *testing.T) {
	got := buildContext([]domain.Review{
		{Branch: "Disneyland_Paris", Rating: "4", YearMonth: "2019-4", ReviewerLocation: "France", Text: "lovely"},
		{Branch: "Disneyland_HongKong", Rating: "5", YearMonth: "2019-5", ReviewerLocation: "Australia", Text: "great"},
	})

	if !strings.Contains(got, "Review 1:") || !strings.Contains(got, "Review 2:") {
		t.Errorf("expected numbered reviews, got %q", got)
	}
	if !strings.Contains(got, "\n---\n") {
		t.Errorf("expected separator between reviews, got %q", got)
	}
	if !strings.Contains(got, "Park: Disneyland_Paris") {
		t.Errorf("expected park line, got %q", got)
	}
}

func TestBuildContext_Empty(t *testing.T) {
	if got := buildContext(nil); got != "No relevant reviews found." {
		t.Errorf("unexpected empty context %q", got)
	}
}
