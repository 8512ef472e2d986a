package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

type answerItem struct {
	QuestionID string   `json:"questionId" validate:"required"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	TimeSpent  int      `json:"timeSpent" validate:"gte=0"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

type submitRequest struct {
	Answers        []answerItem `json:"answers" validate:"required,min=1,dive"`
	TotalTimeSpent int          `json:"totalTimeSpent" validate:"gte=0"`
	CandidateEmail string       `json:"candidateEmail" validate:"required,email"`
	CandidateName  string       `json:"candidateName"`
	CompletedAt    *time.Time   `json:"completedAt"`
}

type mcqAnswerItem struct {
	QuestionIndex    int      `json:"questionIndex" validate:"gte=0"`
	SelectedOptionID string   `json:"selectedOptionId"`
	Confidence       *float64 `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	TimeSpent        int      `json:"timeSpent" validate:"gte=0"`
}

type mcqSubmitRequest struct {
	InterviewID    string          `json:"interviewId" validate:"required,uuid"`
	CandidateEmail string          `json:"candidateEmail" validate:"required,email"`
	CandidateName  string          `json:"candidateName"`
	Answers        []mcqAnswerItem `json:"answers" validate:"required,min=1,dive"`
	CompletedAt    *time.Time      `json:"completedAt"`
	TotalTimeSpent int             `json:"totalTimeSpent" validate:"gte=0"`
}

func completedAt(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

// SubmitHandler accepts a batch of answers for the interview in the path.
func (s *Server) SubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		answers := make([]domain.Answer, len(req.Answers))
		for i, a := range req.Answers {
			answers[i] = domain.Answer{
				QuestionID:       strings.TrimSpace(a.QuestionID),
				QuestionText:     a.Question,
				Text:             a.Answer,
				Confidence:       a.Confidence,
				TimeSpentSeconds: a.TimeSpent,
			}
		}
		out, err := s.Submissions.SubmitAnswers(r.Context(), usecase.AnswerSubmission{
			InterviewID:    chi.URLParam(r, "id"),
			CandidateEmail: req.CandidateEmail,
			CandidateName:  req.CandidateName,
			Answers:        answers,
			TotalTimeSpent: req.TotalTimeSpent,
			CompletedAt:    completedAt(req.CompletedAt),
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"resultId":          out.Result.ID,
				"status":            out.Result.Status,
				"completionRate":    out.Ingest.CompletionRate,
				"totalQuestions":    out.Ingest.TotalQuestions,
				"answeredQuestions": out.Ingest.AnsweredCount,
				"totalTimeSpent":    out.Ingest.TotalTimeSpent,
			},
		})
	}
}

// SubmitMCQHandler accepts index-addressed MCQ answers and returns the graded result.
func (s *Server) SubmitMCQHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mcqSubmitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		answers := make([]usecase.MCQAnswer, len(req.Answers))
		for i, a := range req.Answers {
			answers[i] = usecase.MCQAnswer{
				QuestionIndex:    a.QuestionIndex,
				SelectedOptionID: strings.TrimSpace(a.SelectedOptionID),
				Confidence:       a.Confidence,
				TimeSpentSeconds: a.TimeSpent,
			}
		}
		out, err := s.Submissions.SubmitMCQ(r.Context(), usecase.MCQSubmission{
			InterviewID:    req.InterviewID,
			CandidateEmail: req.CandidateEmail,
			CandidateName:  req.CandidateName,
			Answers:        answers,
			TotalTimeSpent: req.TotalTimeSpent,
			CompletedAt:    completedAt(req.CompletedAt),
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"results": map[string]any{
				"resultId":         out.Result.ID,
				"score":            out.Result.Percentage,
				"correctAnswers":   out.Result.Score,
				"totalQuestions":   out.Result.MaxScore,
				"passed":           out.Result.Passed,
				"feedback":         out.Feedback,
				"detailedFeedback": out.Score.PerQuestion,
			},
		})
	}
}

// ResultHandler returns the stored result of a candidate, honoring If-None-Match.
func (s *Server) ResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, body, etag, err := s.Results.Fetch(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("email"), r.Header.Get("If-None-Match"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if etag != "" {
			w.Header().Set("ETag", `"`+etag+`"`)
		}
		if st == http.StatusNotModified {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeJSON(w, st, body)
	}
}
