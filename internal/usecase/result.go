package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

// ResultService provides read access to stored results and assembles the
// API response envelope including ETag logic.
type ResultService struct {
	Candidates domain.CandidateRepository
	Results    domain.ResultRepository
}

// NewResultService constructs a ResultService with the given repositories.
func NewResultService(c domain.CandidateRepository, r domain.ResultRepository) ResultService {
	return ResultService{Candidates: c, Results: r}
}

// Fetch returns the HTTP status code, response body, and ETag of the result
// of email's candidate for interviewID. A matching If-None-Match yields 304.
func (s ResultService) Fetch(ctx domain.Context, interviewID, email, ifNoneMatch string) (int, map[string]any, string, error) {
	interviewID = strings.TrimSpace(interviewID)
	if _, err := uuid.Parse(interviewID); err != nil {
		return http.StatusBadRequest, nil, "", domain.FieldError("id", "must be a UUID")
	}
	em, ok := textx.NormalizeEmail(email)
	if !ok {
		return http.StatusBadRequest, nil, "", domain.FieldError("email", "must be a valid email address")
	}
	lg := observability.LoggerFromContext(ctx).With(slog.String("interview_id", interviewID))

	cand, err := s.Candidates.FindByEmail(ctx, em)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, nil, "", fmt.Errorf("%w: no result for this candidate", domain.ErrNotFound)
		}
		lg.Error("failed to resolve candidate", slog.Any("error", err))
		return http.StatusServiceUnavailable, nil, "", fmt.Errorf("op=result.fetch: %w", err)
	}
	res, err := s.Results.Get(ctx, interviewID, cand.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return http.StatusNotFound, nil, "", fmt.Errorf("%w: no result for this candidate", domain.ErrNotFound)
		}
		lg.Error("failed to get result", slog.Any("error", err))
		return http.StatusServiceUnavailable, nil, "", fmt.Errorf("op=result.fetch: %w", err)
	}

	m := map[string]any{
		"success": true,
		"data": map[string]any{
			"id":              res.ID,
			"interviewId":     res.InterviewID,
			"candidateId":     res.CandidateID,
			"interviewType":   string(res.InterviewType),
			"status":          string(res.Status),
			"score":           res.Score,
			"maxScore":        res.MaxScore,
			"percentage":      res.Percentage,
			"passed":          res.Passed,
			"durationMinutes": res.DurationMinutes,
			"roundNumber":     res.RoundNumber,
			"startedAt":       res.StartedAt,
			"completedAt":     res.CompletedAt,
			"feedback":        res.Feedback,
		},
	}
	etag := makeETag(m)
	if etag == strings.Trim(ifNoneMatch, `"`) {
		return http.StatusNotModified, nil, etag, nil
	}
	return http.StatusOK, m, etag, nil
}

func makeETag(v any) string {
	b, _ := json.Marshal(v)
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}
