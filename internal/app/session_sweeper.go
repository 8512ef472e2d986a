package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

// ExpiredCleaner deletes entries under prefix whose logical expiry has passed.
type ExpiredCleaner interface {
	CleanupExpired(ctx context.Context, prefix string) (int, error)
}

// SessionSweeper physically removes expired verification sessions and their
// index entries. Reads already treat them as absent; the sweep only reclaims memory.
type SessionSweeper struct {
	store    ExpiredCleaner
	interval time.Duration
}

func NewSessionSweeper(store ExpiredCleaner, interval time.Duration) *SessionSweeper {
	if store == nil {
		return nil
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionSweeper{store: store, interval: interval}
}

func (s *SessionSweeper) Run(ctx context.Context) {
	if s == nil || s.store == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *SessionSweeper) sweepOnce(ctx context.Context) int {
	ctx, span := otel.Tracer("gate.sweeper").Start(ctx, "SessionSweeper.sweepOnce")
	defer span.End()

	n := 0
	for _, prefix := range []string{usecase.SessionKeyPrefix, usecase.IndexKeyPrefix} {
		deleted, err := s.store.CleanupExpired(ctx, prefix)
		n += deleted
		if err != nil {
			span.RecordError(err)
			slog.Error("session sweep failed", slog.String("prefix", prefix), slog.Any("error", err))
		}
	}
	span.SetAttributes(attribute.Int("sessions.deleted", n))
	observability.RecordSessionsSwept(n)
	if n > 0 {
		slog.Info("expired sessions swept", slog.Int("deleted", n))
	}
	return n
}
