package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// PhotoRepo stores identity photos captured at the gate.
type PhotoRepo struct{ Pool PgxPool }

// NewPhotoRepo constructs a PhotoRepo with the given pool.
func NewPhotoRepo(p PgxPool) *PhotoRepo { return &PhotoRepo{Pool: p} }

// Create inserts a photo and returns its id.
func (r *PhotoRepo) Create(ctx domain.Context, p domain.Photo) (string, error) {
	ctx, span := otel.Tracer("repo.photos").Start(ctx, "photos.Create")
	defer span.End()
	span.SetAttributes(attribute.Int64("photo.size", p.Size), attribute.String("photo.mime", p.MIME))
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	q := `INSERT INTO candidate_photos (id, candidate_email, interview_id, mime, size, data, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := r.Pool.Exec(ctx, q, p.ID, p.CandidateEmail, p.InterviewID, p.MIME, p.Size, p.Data, time.Now().UTC()); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("op=photo.create: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return p.ID, nil
}

// Delete removes a photo. A missing row is not an error.
func (r *PhotoRepo) Delete(ctx domain.Context, id string) error {
	ctx, span := otel.Tracer("repo.photos").Start(ctx, "photos.Delete")
	defer span.End()
	if _, err := r.Pool.Exec(ctx, `DELETE FROM candidate_photos WHERE id=$1`, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=photo.delete: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}
