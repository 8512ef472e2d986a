package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

// ResultInput is everything Upsert needs to write one result row.
type ResultInput struct {
	Interview       domain.Interview
	CandidateID     string
	Score           domain.ScoreResult
	Feedback        domain.Feedback
	DurationSeconds int
	CompletedAt     time.Time
}

// ResultsService resolves candidates and writes result rows.
type ResultsService struct {
	Candidates domain.CandidateRepository
	Results    domain.ResultRepository
}

// NewResultsService constructs a ResultsService with the given repositories.
func NewResultsService(c domain.CandidateRepository, r domain.ResultRepository) ResultsService {
	return ResultsService{Candidates: c, Results: r}
}

// ResolveCandidate looks the candidate up by email and creates a minimal
// profile when none exists. Losing a concurrent insert race re-reads the row.
func (s ResultsService) ResolveCandidate(ctx domain.Context, email, fullName string) (domain.Candidate, error) {
	em, ok := textx.NormalizeEmail(email)
	if !ok {
		return domain.Candidate{}, domain.FieldError("candidateEmail", "must be a valid email address")
	}
	c, err := s.Candidates.FindByEmail(ctx, em)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Candidate{}, fmt.Errorf("op=candidate.resolve: %w", err)
	}

	first, last := textx.SplitName(fullName, em)
	c, err = s.Candidates.Create(ctx, domain.Candidate{Email: em, FirstName: first, LastName: last})
	if err == nil {
		observability.LoggerFromContext(ctx).Info("candidate created", slog.String("candidate_id", c.ID))
		return c, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return domain.Candidate{}, fmt.Errorf("op=candidate.resolve: %w", err)
	}
	c, err = s.Candidates.FindByEmail(ctx, em)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("op=candidate.resolve: reread after conflict: %w", err)
	}
	return c, nil
}

// Upsert writes the completed result for (interview, candidate). Repeating the
// call overwrites the same row.
func (s ResultsService) Upsert(ctx domain.Context, in ResultInput) (domain.ScoredResult, error) {
	ctx, span := otel.Tracer("usecase.results").Start(ctx, "results.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("interview.id", in.Interview.ID))

	if in.CandidateID == "" {
		return domain.ScoredResult{}, domain.FieldError("candidateId", "is required")
	}
	if in.DurationSeconds < 0 {
		return domain.ScoredResult{}, domain.FieldError("durationSeconds", "must not be negative")
	}
	completedAt := in.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	completedAt = completedAt.UTC()
	minutes := DurationMinutes(in.DurationSeconds)
	round := in.Interview.RoundNumber
	if round <= 0 {
		round = 1
	}
	itype := in.Score.InterviewType
	if itype == "" {
		itype = in.Interview.Type
	}

	row := domain.ScoredResult{
		InterviewID:     in.Interview.ID,
		CandidateID:     in.CandidateID,
		InterviewType:   itype,
		Status:          domain.ResultCompleted,
		Score:           in.Score.Score,
		MaxScore:        in.Score.MaxScore,
		Percentage:      in.Score.Percentage,
		DurationMinutes: minutes,
		Passed:          domain.Passed(in.Score.Score, in.Score.MaxScore),
		Feedback:        in.Feedback,
		StartedAt:       completedAt.Add(-time.Duration(in.DurationSeconds) * time.Second),
		CompletedAt:     completedAt,
		RoundNumber:     round,
	}
	out, err := s.Results.Upsert(ctx, row)
	if err != nil {
		span.RecordError(err)
		return domain.ScoredResult{}, fmt.Errorf("op=result.upsert: %w", err)
	}
	observability.LoggerFromContext(ctx).Info("result stored",
		slog.String("result_id", out.ID),
		slog.Bool("inserted", out.Inserted),
		slog.Int("score", out.Score),
		slog.Int("max_score", out.MaxScore))
	return out, nil
}

// DurationMinutes rounds seconds up to whole minutes.
func DurationMinutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 59) / 60
}
