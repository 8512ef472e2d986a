package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// AnswerSubmission is a free-text (or option-id-as-text) submission.
type AnswerSubmission struct {
	InterviewID    string
	CandidateEmail string
	CandidateName  string
	Answers        []domain.Answer
	TotalTimeSpent int
	CompletedAt    time.Time
}

// MCQSubmission addresses answers by question index.
type MCQSubmission struct {
	InterviewID    string
	CandidateEmail string
	CandidateName  string
	Answers        []MCQAnswer
	TotalTimeSpent int
	CompletedAt    time.Time
}

// SubmissionOutcome carries every pipeline product the HTTP layer renders.
type SubmissionOutcome struct {
	Ingest   domain.IngestResult
	Score    domain.ScoreResult
	Feedback domain.Feedback
	Result   domain.ScoredResult
}

// SubmissionService runs load, ingest, score, synthesize, resolve, upsert and
// publish in that order. Storage errors abort; publishing is best-effort.
type SubmissionService struct {
	Interviews domain.InterviewRepository
	Feedback   FeedbackService
	Results    ResultsService
	Publisher  domain.ResultPublisher
}

// NewSubmissionService constructs a SubmissionService. p may be nil.
func NewSubmissionService(iv domain.InterviewRepository, fb FeedbackService, rs ResultsService, p domain.ResultPublisher) SubmissionService {
	return SubmissionService{Interviews: iv, Feedback: fb, Results: rs, Publisher: p}
}

// SubmitAnswers handles POST /interviews/{id}/submit. For MCQ interviews the
// answer text is read as the selected option id.
func (s SubmissionService) SubmitAnswers(ctx domain.Context, sub AnswerSubmission) (SubmissionOutcome, error) {
	ctx, span := otel.Tracer("usecase.submission").Start(ctx, "submission.SubmitAnswers")
	defer span.End()

	iv, err := s.loadInterview(ctx, sub.InterviewID)
	if err != nil {
		return SubmissionOutcome{}, err
	}
	answers := sub.Answers
	if iv.Type.IsMCQ() {
		answers = make([]domain.Answer, len(sub.Answers))
		for i, a := range sub.Answers {
			if a.SelectedOptionID == "" {
				a.SelectedOptionID = strings.TrimSpace(a.Text)
			}
			answers[i] = a
		}
	}
	return s.process(ctx, iv, sub.CandidateEmail, sub.CandidateName, answers, sub.TotalTimeSpent, sub.CompletedAt)
}

// SubmitMCQ handles POST /interviews/mcq/submit.
func (s SubmissionService) SubmitMCQ(ctx domain.Context, sub MCQSubmission) (SubmissionOutcome, error) {
	ctx, span := otel.Tracer("usecase.submission").Start(ctx, "submission.SubmitMCQ")
	defer span.End()

	iv, err := s.loadInterview(ctx, sub.InterviewID)
	if err != nil {
		return SubmissionOutcome{}, err
	}
	if !iv.Type.IsMCQ() {
		return SubmissionOutcome{}, domain.FieldError("interviewId", fmt.Sprintf("interview is %s, not mcq", iv.Type))
	}
	if len(sub.Answers) == 0 {
		return SubmissionOutcome{}, domain.FieldError("answers", "must not be empty")
	}
	answers, err := MapMCQAnswers(iv.Questions, sub.Answers)
	if err != nil {
		return SubmissionOutcome{}, err
	}
	return s.process(ctx, iv, sub.CandidateEmail, sub.CandidateName, answers, sub.TotalTimeSpent, sub.CompletedAt)
}

func (s SubmissionService) loadInterview(ctx domain.Context, id string) (domain.Interview, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return domain.Interview{}, domain.FieldError("interviewId", "must be a UUID")
	}
	iv, err := s.Interviews.Get(ctx, id)
	if err != nil {
		return domain.Interview{}, fmt.Errorf("op=submission.load_interview: %w", err)
	}
	return iv, nil
}

func (s SubmissionService) process(ctx domain.Context, iv domain.Interview, email, name string, answers []domain.Answer, totalTime int, completedAt time.Time) (out SubmissionOutcome, err error) {
	lg := observability.LoggerFromContext(ctx).With(slog.String("interview_id", iv.ID), slog.String("interview_type", string(iv.Type)))
	defer func() {
		if err != nil {
			outcome := "failed"
			if errors.Is(err, domain.ErrInvalidArgument) {
				outcome = "rejected"
			}
			observability.ObserveSubmission(string(iv.Type), outcome, -1)
		}
	}()

	ing, err := Ingest(iv.ID, email, iv.Type, answers, totalTime)
	if err != nil {
		return SubmissionOutcome{}, err
	}
	sr := Score(iv.Type, ing.Answers, iv.Questions)
	if sr.Discrepancy != nil {
		lg.Warn("question bank and answers disagree",
			slog.Int("bank_size", sr.Discrepancy.BankSize),
			slog.Int("answer_count", sr.Discrepancy.AnswerCount))
	}
	if len(sr.Ungraded) > 0 {
		lg.Warn("ungraded answers", slog.Int("count", len(sr.Ungraded)))
	}
	fb := s.Feedback.Synthesize(ctx, sr, ing.AverageConfidence, ing.TotalTimeSpent)

	cand, err := s.Results.ResolveCandidate(ctx, ing.CandidateEmail, name)
	if err != nil {
		return SubmissionOutcome{}, err
	}
	row, err := s.Results.Upsert(ctx, ResultInput{
		Interview:       iv,
		CandidateID:     cand.ID,
		Score:           sr,
		Feedback:        fb,
		DurationSeconds: ing.TotalTimeSpent,
		CompletedAt:     completedAt,
	})
	if err != nil {
		return SubmissionOutcome{}, err
	}
	s.publish(ctx, row)

	observability.ObserveSubmission(string(iv.Type), "completed", row.Percentage)
	lg.Info("submission scored",
		slog.String("result_id", row.ID),
		slog.Int("score", row.Score),
		slog.Int("max_score", row.MaxScore),
		slog.Bool("passed", row.Passed),
		slog.String("feedback_source", fb.Source))
	return SubmissionOutcome{Ingest: ing, Score: sr, Feedback: fb, Result: row}, nil
}

func (s SubmissionService) publish(ctx domain.Context, row domain.ScoredResult) {
	if s.Publisher == nil {
		return
	}
	ctx, span := otel.Tracer("usecase.submission").Start(ctx, "submission.publish")
	defer span.End()
	span.SetAttributes(attribute.String("result.id", row.ID))
	ev := domain.ResultCompletedEvent{
		ResultID:      row.ID,
		InterviewID:   row.InterviewID,
		CandidateID:   row.CandidateID,
		InterviewType: row.InterviewType,
		Score:         row.Score,
		MaxScore:      row.MaxScore,
		Percentage:    row.Percentage,
		Passed:        row.Passed,
		Inserted:      row.Inserted,
		CompletedAt:   row.CompletedAt,
	}
	if err := s.Publisher.PublishResultCompleted(ctx, ev); err != nil {
		span.RecordError(err)
		observability.LoggerFromContext(ctx).Warn("result event not published", slog.String("result_id", row.ID), slog.Any("error", err))
	}
}
