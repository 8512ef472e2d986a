package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// ResultRepo persists and loads scored interview results from PostgreSQL.
type ResultRepo struct{ Pool PgxPool }

// NewResultRepo constructs a ResultRepo with the given pool.
func NewResultRepo(p PgxPool) *ResultRepo { return &ResultRepo{Pool: p} }

// Upsert writes the result for its (interview, candidate) pair in one
// statement. Resubmission overwrites the previous row and keeps its id.
func (r *ResultRepo) Upsert(ctx domain.Context, res domain.ScoredResult) (domain.ScoredResult, error) {
	ctx, span := otel.Tracer("repo.results").Start(ctx, "results.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("interview.id", res.InterviewID))

	if res.Score < 0 || res.Score > res.MaxScore {
		return domain.ScoredResult{}, fmt.Errorf("op=result.upsert: %w: score %d outside [0,%d]", domain.ErrInvalidArgument, res.Score, res.MaxScore)
	}
	feedback, err := json.Marshal(res.Feedback)
	if err != nil {
		return domain.ScoredResult{}, fmt.Errorf("op=result.upsert: encode feedback: %w", err)
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.Status == "" {
		res.Status = domain.ResultCompleted
	}
	now := time.Now().UTC()

	q := `INSERT INTO interview_results (id, interview_id, candidate_id, interview_type, status, score, max_score, percentage, duration_minutes, passed, feedback, started_at, completed_at, round_number, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
	ON CONFLICT (interview_id, candidate_id)
	DO UPDATE SET interview_type=EXCLUDED.interview_type, status=EXCLUDED.status, score=EXCLUDED.score, max_score=EXCLUDED.max_score, percentage=EXCLUDED.percentage, duration_minutes=EXCLUDED.duration_minutes, passed=EXCLUDED.passed, feedback=EXCLUDED.feedback, started_at=EXCLUDED.started_at, completed_at=EXCLUDED.completed_at, round_number=EXCLUDED.round_number, updated_at=EXCLUDED.updated_at
	RETURNING id::text, created_at, updated_at, (xmax = 0)`
	row := r.Pool.QueryRow(ctx, q,
		res.ID, res.InterviewID, res.CandidateID, string(res.InterviewType), string(res.Status),
		res.Score, res.MaxScore, res.Percentage, res.DurationMinutes, res.Passed, string(feedback),
		res.StartedAt, res.CompletedAt, res.RoundNumber, now)
	if err := row.Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt, &res.Inserted); err != nil {
		span.RecordError(err)
		return domain.ScoredResult{}, fmt.Errorf("op=result.upsert: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	span.SetAttributes(attribute.Bool("result.inserted", res.Inserted))
	return res, nil
}

// Get loads the result of a candidate for an interview.
func (r *ResultRepo) Get(ctx domain.Context, interviewID, candidateID string) (domain.ScoredResult, error) {
	ctx, span := otel.Tracer("repo.results").Start(ctx, "results.Get")
	defer span.End()
	q := `SELECT id::text, interview_id::text, candidate_id::text, interview_type, status, score, max_score, percentage, duration_minutes, passed, feedback, started_at, completed_at, round_number, created_at, updated_at
	FROM interview_results WHERE interview_id=$1 AND candidate_id=$2`
	var (
		res             domain.ScoredResult
		typ, status, fb string
	)
	err := r.Pool.QueryRow(ctx, q, interviewID, candidateID).Scan(
		&res.ID, &res.InterviewID, &res.CandidateID, &typ, &status,
		&res.Score, &res.MaxScore, &res.Percentage, &res.DurationMinutes, &res.Passed, &fb,
		&res.StartedAt, &res.CompletedAt, &res.RoundNumber, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScoredResult{}, fmt.Errorf("op=result.get: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		return domain.ScoredResult{}, fmt.Errorf("op=result.get: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	res.InterviewType = domain.InterviewType(typ)
	res.Status = domain.ResultStatus(status)
	if fb != "" {
		if err := json.Unmarshal([]byte(fb), &res.Feedback); err != nil {
			return domain.ScoredResult{}, fmt.Errorf("op=result.get: decode feedback: %w", err)
		}
	}
	return res, nil
}
