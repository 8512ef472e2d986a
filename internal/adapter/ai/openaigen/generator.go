// Package openaigen implements the feedback generator on top of any
// OpenAI-compatible chat completions endpoint.
package openaigen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

const provider = "openai"

const systemPrompt = `You write interview feedback for a hiring team.
You receive the graded facts of one interview submission. Do not change any score.
Respond ONLY with a JSON object of this shape:
{"overallPerformance": "<one sentence>", "strengths": ["..."], "improvements": ["..."], "perQuestionNotes": [{"questionId": "<id>", "note": "<short note>"}]}`

// Generator calls the chat completions API with retries and a circuit breaker.
type Generator struct {
	api       *openai.Client
	model     string
	maxTokens int
	cfg       config.Config
	breaker   *ai.CircuitBreaker
	cleaner   *ai.ResponseCleaner
	counter   *tokencount.Counter
}

// New builds a Generator from configuration. Outbound requests are traced via otelhttp.
func New(cfg config.Config) *Generator {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = cfg.OpenAIBaseURL
	}
	oc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return &Generator{
		api:       openai.NewClientWithConfig(oc),
		model:     cfg.OpenAIModel,
		maxTokens: cfg.FeedbackMaxPromptTokens,
		cfg:       cfg,
		breaker:   ai.NewCircuitBreaker("feedback-" + cfg.OpenAIModel),
		cleaner:   ai.NewResponseCleaner(),
		counter:   tokencount.DefaultCounter,
	}
}

// Breaker exposes the circuit breaker for readiness reporting.
func (g *Generator) Breaker() *ai.CircuitBreaker { return g.breaker }

func (g *Generator) backoff() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsed, initial, maxInterval, multiplier := g.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsed
	expo.InitialInterval = initial
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

// Generate returns the model's JSON object for prompt. Any returned error
// means the caller should fall back to rules-based feedback.
func (g *Generator) Generate(ctx domain.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("ai.openai").Start(ctx, "feedback.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("ai.model", g.model))

	if !g.breaker.Allow() {
		observability.ObserveAIRequest(provider, "feedback", "circuit_open", 0)
		return "", fmt.Errorf("op=feedback.generate: circuit open: %w", domain.ErrUpstreamUnavailable)
	}

	if trimmed, cut := g.counter.Truncate(prompt, g.model, g.maxTokens); cut {
		slog.Debug("feedback prompt truncated", slog.Int("max_tokens", g.maxTokens))
		prompt = trimmed
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	}

	var content string
	op := func() error {
		start := time.Now()
		resp, err := g.api.CreateChatCompletion(ctx, req)
		if err != nil {
			observability.ObserveAIRequest(provider, "feedback", "error", time.Since(start))
			if status := httpStatus(err); status >= 400 && status < 500 && status != http.StatusTooManyRequests {
				slog.Warn("ai provider 4xx", slog.String("provider", provider), slog.Int("status", status), slog.String("model", g.model))
				return backoff.Permanent(err)
			}
			return err
		}
		observability.ObserveAIRequest(provider, "feedback", "ok", time.Since(start))
		if len(resp.Choices) == 0 {
			return errors.New("empty choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(g.backoff(), ctx)); err != nil {
		g.breaker.RecordFailure()
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("op=feedback.generate: %w: %w", domain.ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("op=feedback.generate: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	g.breaker.RecordSuccess()

	cleaned, err := g.cleaner.CleanAndValidateJSON(content)
	if err != nil {
		return "", fmt.Errorf("op=feedback.generate: %w", err)
	}
	return cleaned, nil
}

func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
