package openaigen

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
}

func newGenerator(t *testing.T, h http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.Config{
		AppEnv:                  "test",
		OpenAIAPIKey:            "sk-test",
		OpenAIBaseURL:           srv.URL + "/v1",
		OpenAIModel:             "gpt-4o-mini",
		FeedbackMaxPromptTokens: 500,
	})
}

func TestGenerate_Success(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("```json\n{\"overallPerformance\":\"Strong\",\"strengths\":[\"a\"],\"improvements\":[],\"perQuestionNotes\":[]}\n```"))
	})

	out, err := g.Generate(t.Context(), "facts")
	require.NoError(t, err)
	assert.JSONEq(t, `{"overallPerformance":"Strong","strengths":["a"],"improvements":[],"perQuestionNotes":[]}`, out)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "facts", got.Messages[1].Content)
	assert.Equal(t, ai.CircuitClosed, g.Breaker().State())
}

func TestGenerate_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	g := newGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	_, err := g.Generate(t.Context(), "facts")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	var calls int32
	g := newGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(completion(`{"overallPerformance":"ok","strengths":[],"improvements":[],"perQuestionNotes":[]}`))
	})

	_, err := g.Generate(t.Context(), "facts")
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGenerate_NonJSONContent(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("I am unable to comply."))
	})
	_, err := g.Generate(t.Context(), "facts")
	var verr *ai.JSONValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestGenerate_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	g := newGenerator(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
	})
	for i := 0; i < 3; i++ {
		_, err := g.Generate(t.Context(), "facts")
		require.Error(t, err)
	}
	require.Equal(t, ai.CircuitOpen, g.Breaker().State())

	_, err := g.Generate(t.Context(), "facts")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	assert.Contains(t, err.Error(), "circuit open")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}
