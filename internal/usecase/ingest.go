package usecase

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

// MCQAnswer is an MCQ answer addressed by its position in the question bank.
type MCQAnswer struct {
	QuestionIndex    int
	SelectedOptionID string
	Confidence       *float64
	TimeSpentSeconds int
}

// MapMCQAnswers resolves question indexes to bank question ids.
func MapMCQAnswers(bank []domain.Question, in []MCQAnswer) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0, len(in))
	for i, a := range in {
		if a.QuestionIndex < 0 || a.QuestionIndex >= len(bank) {
			return nil, &domain.ValidationError{Index: i, Field: "questionIndex", Reason: fmt.Sprintf("out of range [0,%d)", len(bank))}
		}
		q := bank[a.QuestionIndex]
		out = append(out, domain.Answer{
			QuestionID:       q.ID,
			QuestionText:     q.Text,
			SelectedOptionID: a.SelectedOptionID,
			Confidence:       a.Confidence,
			TimeSpentSeconds: a.TimeSpentSeconds,
		})
	}
	return out, nil
}

// Ingest validates and normalizes a submission. It touches no storage and
// either accepts every answer or returns the first ValidationError.
// totalTimeSpent of 0 means the per-answer times are summed.
func Ingest(interviewID, candidateEmail string, itype domain.InterviewType, answers []domain.Answer, totalTimeSpent int) (domain.IngestResult, error) {
	interviewID = strings.TrimSpace(interviewID)
	if _, err := uuid.Parse(interviewID); err != nil {
		return domain.IngestResult{}, domain.FieldError("interviewId", "must be a UUID")
	}
	email, ok := textx.NormalizeEmail(candidateEmail)
	if !ok {
		return domain.IngestResult{}, domain.FieldError("candidateEmail", "must be a valid email address")
	}
	if len(answers) == 0 {
		return domain.IngestResult{}, domain.FieldError("answers", "must not be empty")
	}
	if totalTimeSpent < 0 {
		return domain.IngestResult{}, domain.FieldError("totalTimeSpent", "must not be negative")
	}

	seen := make(map[string]struct{}, len(answers))
	norm := make([]domain.Answer, 0, len(answers))
	answered, timeSum := 0, 0
	var confSum float64
	confN := 0
	for i, a := range answers {
		a.QuestionID = strings.TrimSpace(a.QuestionID)
		if a.QuestionID == "" {
			return domain.IngestResult{}, &domain.ValidationError{Index: i, Field: "questionId", Reason: "is required"}
		}
		if _, dup := seen[a.QuestionID]; dup {
			return domain.IngestResult{}, &domain.ValidationError{Index: i, Field: "questionId", Reason: fmt.Sprintf("duplicate question id %q", a.QuestionID)}
		}
		seen[a.QuestionID] = struct{}{}
		if a.TimeSpentSeconds < 0 {
			return domain.IngestResult{}, &domain.ValidationError{Index: i, Field: "timeSpent", Reason: "must not be negative"}
		}
		if a.Confidence != nil && (*a.Confidence < 0 || *a.Confidence > 1) {
			return domain.IngestResult{}, &domain.ValidationError{Index: i, Field: "confidence", Reason: "must be between 0 and 1"}
		}

		a.QuestionText = textx.SanitizeText(a.QuestionText)
		a.Text = textx.SanitizeText(a.Text)
		a.SelectedOptionID = strings.TrimSpace(a.SelectedOptionID)
		if isAnswered(itype, a) {
			answered++
		}
		if a.Confidence != nil {
			confSum += *a.Confidence
			confN++
		}
		timeSum += a.TimeSpentSeconds
		norm = append(norm, a)
	}

	if totalTimeSpent == 0 {
		totalTimeSpent = timeSum
	}
	res := domain.IngestResult{
		InterviewID:    interviewID,
		CandidateEmail: email,
		InterviewType:  itype,
		Answers:        norm,
		TotalQuestions: len(norm),
		AnsweredCount:  answered,
		CompletionRate: domain.Percentage(answered, len(norm)),
		TotalTimeSpent: totalTimeSpent,
	}
	if confN > 0 {
		avg := confSum / float64(confN)
		res.AverageConfidence = &avg
	}
	return res, nil
}

func isAnswered(itype domain.InterviewType, a domain.Answer) bool {
	if itype.IsMCQ() {
		return a.SelectedOptionID != ""
	}
	return !textx.IsBlank(a.Text)
}
