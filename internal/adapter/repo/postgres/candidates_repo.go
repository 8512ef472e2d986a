package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// CandidateRepo persists candidate profiles.
type CandidateRepo struct{ Pool PgxPool }

// NewCandidateRepo constructs a CandidateRepo with the given pool.
func NewCandidateRepo(p PgxPool) *CandidateRepo { return &CandidateRepo{Pool: p} }

// FindByEmail loads a candidate by normalized email.
func (r *CandidateRepo) FindByEmail(ctx domain.Context, email string) (domain.Candidate, error) {
	ctx, span := otel.Tracer("repo.candidates").Start(ctx, "candidates.FindByEmail")
	defer span.End()
	q := `SELECT id::text, email, first_name, last_name, created_at FROM candidates WHERE email=$1`
	var c domain.Candidate
	err := r.Pool.QueryRow(ctx, q, email).Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Candidate{}, fmt.Errorf("op=candidate.find_by_email: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		return domain.Candidate{}, fmt.Errorf("op=candidate.find_by_email: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return c, nil
}

// Create inserts a candidate. A duplicate email is reported as ErrConflict.
func (r *CandidateRepo) Create(ctx domain.Context, c domain.Candidate) (domain.Candidate, error) {
	ctx, span := otel.Tracer("repo.candidates").Start(ctx, "candidates.Create")
	defer span.End()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	q := `INSERT INTO candidates (id, email, first_name, last_name, created_at) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`
	err := r.Pool.QueryRow(ctx, q, c.ID, c.Email, c.FirstName, c.LastName, time.Now().UTC()).Scan(&c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Candidate{}, fmt.Errorf("op=candidate.create: %w", domain.ErrConflict)
		}
		span.RecordError(err)
		return domain.Candidate{}, fmt.Errorf("op=candidate.create: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return c, nil
}
