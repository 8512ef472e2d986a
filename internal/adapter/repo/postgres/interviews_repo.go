package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// InterviewRepo loads interviews and their question banks.
type InterviewRepo struct{ Pool PgxPool }

// NewInterviewRepo constructs an InterviewRepo with the given pool.
func NewInterviewRepo(p PgxPool) *InterviewRepo { return &InterviewRepo{Pool: p} }

// Get loads an interview by id.
func (r *InterviewRepo) Get(ctx domain.Context, id string) (domain.Interview, error) {
	ctx, span := otel.Tracer("repo.interviews").Start(ctx, "interviews.Get")
	defer span.End()
	q := `SELECT id::text, title, type, round_number, questions, created_at FROM interviews WHERE id=$1`
	var (
		iv        domain.Interview
		typ       string
		questions []byte
	)
	if err := r.Pool.QueryRow(ctx, q, id).Scan(&iv.ID, &iv.Title, &typ, &iv.RoundNumber, &questions, &iv.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Interview{}, fmt.Errorf("op=interview.get: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		return domain.Interview{}, fmt.Errorf("op=interview.get: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	iv.Type = domain.InterviewType(typ)
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &iv.Questions); err != nil {
			return domain.Interview{}, fmt.Errorf("op=interview.get: decode questions: %w", err)
		}
	}
	return iv, nil
}

// Upsert inserts or replaces an interview and its question bank.
func (r *InterviewRepo) Upsert(ctx domain.Context, iv domain.Interview) error {
	ctx, span := otel.Tracer("repo.interviews").Start(ctx, "interviews.Upsert")
	defer span.End()
	questions, err := json.Marshal(iv.Questions)
	if err != nil {
		return fmt.Errorf("op=interview.upsert: encode questions: %w", err)
	}
	if iv.RoundNumber <= 0 {
		iv.RoundNumber = 1
	}
	q := `INSERT INTO interviews (id, title, type, round_number, questions, created_at)
	VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (id)
	DO UPDATE SET title=EXCLUDED.title, type=EXCLUDED.type, round_number=EXCLUDED.round_number, questions=EXCLUDED.questions`
	if _, err := r.Pool.Exec(ctx, q, iv.ID, iv.Title, string(iv.Type), iv.RoundNumber, questions, time.Now().UTC()); err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=interview.upsert: %w", err)
	}
	return nil
}
