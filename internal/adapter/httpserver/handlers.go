package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

// Server aggregates handlers dependencies.
type Server struct {
	Cfg         config.Config
	Gate        usecase.GateService
	Photos      domain.PhotoRepository
	Submissions usecase.SubmissionService
	Results     usecase.ResultService
	DBCheck     func(ctx context.Context) error
	RedisCheck  func(ctx context.Context) error
	KafkaCheck  func(ctx context.Context) error
}

// Checks groups the readiness checks of the backing services. Nil checks are skipped.
type Checks struct {
	DB    func(ctx context.Context) error
	Redis func(ctx context.Context) error
	Kafka func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, gate usecase.GateService, photos domain.PhotoRepository, subs usecase.SubmissionService, results usecase.ResultService, checks Checks) *Server {
	return &Server{
		Cfg:         cfg,
		Gate:        gate,
		Photos:      photos,
		Submissions: subs,
		Results:     results,
		DBCheck:     checks.DB,
		RedisCheck:  checks.Redis,
		KafkaCheck:  checks.Kafka,
	}
}

// HealthzHandler reports liveness only.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

// ReadyzHandler returns a readiness handler that pings Postgres, Redis and Kafka.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		targets := []struct {
			name string
			fn   func(context.Context) error
		}{
			{"db", s.DBCheck},
			{"redis", s.RedisCheck},
			{"kafka", s.KafkaCheck},
		}
		checks := make([]check, 0, len(targets))
		ok := true
		for _, p := range targets {
			if p.fn == nil {
				continue
			}
			if err := p.fn(ctx); err != nil {
				ok = false
				checks = append(checks, check{Name: p.name, Details: err.Error()})
				continue
			}
			checks = append(checks, check{Name: p.name, OK: true})
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
