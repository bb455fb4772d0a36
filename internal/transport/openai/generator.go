package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/parklens/revq/internal/domain"
	"github.com/parklens/revq/internal/metrics"
)

const systemPrompt = "You are a helpful assistant that answers questions about Disney parks " +
	"based on customer reviews. Use only the provided reviews to answer. " +
	"If the reviews don't contain enough information, say so."

// Generator produces answers from retrieved reviews via chat completions.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// GeneratorConfig holds the answer generation settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible answer generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
}

// Generate answers the question grounded on the given reviews.
func (g *Generator) Generate(ctx context.Context, question string, reviews []domain.Review) (string, error) {
	userPrompt := fmt.Sprintf(
		"Based on these customer reviews:\n\n%s\n\nQuestion: %s\n\n"+
			"Please provide a concise answer based on the reviews above.",
		buildContext(reviews), question)

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", parseAPIError("completion", err, domain.ErrAnswerProviderError)
	}

	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(g.model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrAnswerProviderError)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(g.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(g.model).Observe(duration.Seconds())

	return resp.Choices[0].Message.Content, nil
}

// buildContext formats reviews as a numbered, separator-delimited context block.
func buildContext(reviews []domain.Review) string {
	if len(reviews) == 0 {
		return "No relevant reviews found."
	}

	parts := make([]string, len(reviews))
	for i, r := range reviews {
		parts[i] = fmt.Sprintf(
			"Review %d:\nPark: %s\nRating: %s\nDate: %s\nReviewer Location: %s\nReview: %s\n",
			i+1, r.Branch, r.Rating, r.YearMonth, r.ReviewerLocation, r.Text)
	}
	return strings.Join(parts, "\n---\n")
}
