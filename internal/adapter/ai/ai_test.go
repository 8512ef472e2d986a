package ai

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clk := &manualClock{t: time.Now()}
	cb := NewCircuitBreaker("feedback", WithBreakerClock(clk.Now))

	for i := 0; i < 2; i++ {
		require.True(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenAdmitsOneTrialCall(t *testing.T) {
	clk := &manualClock{t: time.Now()}
	cb := NewCircuitBreaker("feedback", WithThreshold(1), WithRecoveryTimeout(time.Second), WithBreakerClock(clk.Now))

	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())
	clk.Advance(2 * time.Second)

	assert.True(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())
	assert.False(t, cb.Allow(), "only one trial call while half-open")

	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_FailedTrialCallReopens(t *testing.T) {
	clk := &manualClock{t: time.Now()}
	cb := NewCircuitBreaker("feedback", WithThreshold(5), WithRecoveryTimeout(time.Second), WithBreakerClock(clk.Now))
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
	}
	clk.Advance(2 * time.Second)
	require.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

func TestResponseCleaner_CleanAndValidateJSON(t *testing.T) {
	t.Parallel()
	rc := NewResponseCleaner()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Sure! Here it is: {\"a\":\"x\"} hope that helps", `{"a":"x"}`},
		{"braces inside strings", `{"note":"use {curly} braces","b":2} trailing`, `{"note":"use {curly} braces","b":2}`},
		{"apostrophes preserved", `{"s":"the candidate's answer"}`, `{"s":"the candidate's answer"}`},
		{"trailing comma", `{"list":["a","b",],}`, `{"list":["a","b"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rc.CleanAndValidateJSON(tt.input)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestResponseCleaner_RejectsNonJSON(t *testing.T) {
	_, err := NewResponseCleaner().CleanAndValidateJSON("I cannot help with that.")
	require.Error(t, err)
	var verr *JSONValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "I cannot help with that.", verr.Original)

	_, err = NewResponseCleaner().CleanAndValidateJSON(`{"unterminated": "x"`)
	assert.Error(t, err)
}
