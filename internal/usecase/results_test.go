package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain/mocks"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

func TestResolveCandidate_Existing(t *testing.T) {
	cands := mocks.NewMockCandidateRepository(t)
	cands.On("FindByEmail", mock.Anything, testEmail).Return(domain.Candidate{ID: "c1", Email: testEmail}, nil).Once()

	svc := usecase.NewResultsService(cands, mocks.NewMockResultRepository(t))
	c, err := svc.ResolveCandidate(context.Background(), "Jane.Doe@example.com", "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
}

func TestResolveCandidate_CreatesWithSplitName(t *testing.T) {
	cands := mocks.NewMockCandidateRepository(t)
	cands.On("FindByEmail", mock.Anything, testEmail).Return(domain.Candidate{}, domain.ErrNotFound).Once()
	cands.On("Create", mock.Anything, domain.Candidate{Email: testEmail, FirstName: "Jane", LastName: "van Doe"}).
		Return(domain.Candidate{ID: "c2", Email: testEmail, FirstName: "Jane", LastName: "van Doe"}, nil).Once()

	svc := usecase.NewResultsService(cands, mocks.NewMockResultRepository(t))
	c, err := svc.ResolveCandidate(context.Background(), testEmail, "Jane van Doe")
	require.NoError(t, err)
	assert.Equal(t, "c2", c.ID)
}

func TestResolveCandidate_ConflictRereads(t *testing.T) {
	cands := mocks.NewMockCandidateRepository(t)
	cands.On("FindByEmail", mock.Anything, testEmail).Return(domain.Candidate{}, domain.ErrNotFound).Once()
	cands.On("Create", mock.Anything, mock.Anything).Return(domain.Candidate{}, domain.ErrConflict).Once()
	cands.On("FindByEmail", mock.Anything, testEmail).Return(domain.Candidate{ID: "winner", Email: testEmail}, nil).Once()

	svc := usecase.NewResultsService(cands, mocks.NewMockResultRepository(t))
	c, err := svc.ResolveCandidate(context.Background(), testEmail, "")
	require.NoError(t, err)
	assert.Equal(t, "winner", c.ID)
}

func TestResolveCandidate_StoreDown(t *testing.T) {
	cands := mocks.NewMockCandidateRepository(t)
	cands.On("FindByEmail", mock.Anything, testEmail).Return(domain.Candidate{}, domain.ErrUpstreamUnavailable).Once()

	svc := usecase.NewResultsService(cands, mocks.NewMockResultRepository(t))
	_, err := svc.ResolveCandidate(context.Background(), testEmail, "")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestResultsUpsert_BuildsCompletedRow(t *testing.T) {
	results := mocks.NewMockResultRepository(t)
	completed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sr := domain.ScoreResult{InterviewType: domain.InterviewBehavioral, Score: 3, MaxScore: 5, Percentage: 60, Passed: true}
	fb := domain.Feedback{OverallPerformance: "ok", Source: domain.FeedbackSourceRules}

	var got domain.ScoredResult
	results.On("Upsert", mock.Anything, mock.AnythingOfType("domain.ScoredResult")).
		Run(func(args mock.Arguments) { got = args.Get(1).(domain.ScoredResult) }).
		Return(func(_ context.Context, r domain.ScoredResult) (domain.ScoredResult, error) {
			r.ID = "r1"
			r.Inserted = true
			return r, nil
		}).Once()

	svc := usecase.NewResultsService(mocks.NewMockCandidateRepository(t), results)
	out, err := svc.Upsert(context.Background(), usecase.ResultInput{
		Interview:       domain.Interview{ID: testInterviewID, Type: domain.InterviewBehavioral, RoundNumber: 2},
		CandidateID:     "c1",
		Score:           sr,
		Feedback:        fb,
		DurationSeconds: 121,
		CompletedAt:     completed,
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", out.ID)
	assert.Equal(t, domain.ResultCompleted, got.Status)
	assert.Equal(t, 3, got.DurationMinutes)
	assert.Equal(t, 2, got.RoundNumber)
	assert.True(t, got.Passed)
	assert.Equal(t, completed, got.CompletedAt)
	assert.Equal(t, completed.Add(-121*time.Second), got.StartedAt)
	assert.Equal(t, fb, got.Feedback)
}

func TestResultsUpsert_PropagatesStoreError(t *testing.T) {
	results := mocks.NewMockResultRepository(t)
	results.On("Upsert", mock.Anything, mock.Anything).Return(domain.ScoredResult{}, domain.ErrUpstreamUnavailable).Once()
	svc := usecase.NewResultsService(mocks.NewMockCandidateRepository(t), results)
	_, err := svc.Upsert(context.Background(), usecase.ResultInput{
		Interview:   domain.Interview{ID: testInterviewID},
		CandidateID: "c1",
	})
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}

func TestDurationMinutes(t *testing.T) {
	assert.Equal(t, 0, usecase.DurationMinutes(0))
	assert.Equal(t, 1, usecase.DurationMinutes(1))
	assert.Equal(t, 1, usecase.DurationMinutes(60))
	assert.Equal(t, 2, usecase.DurationMinutes(61))
}
