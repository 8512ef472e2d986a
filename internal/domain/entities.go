// Package domain holds the core types, ports and error taxonomy of the
// interview evaluator.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrRateLimited         = errors.New("rate limited")
	ErrStageViolation      = errors.New("stage violation")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrInternal            = errors.New("internal error")
)

// ValidationError names the offending field of a malformed request.
// Index is the position inside a batch, or -1 when the field is not part of one.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("answers[%d].%s: %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidArgument.
func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// Details returns the field-level payload rendered in error responses.
func (e *ValidationError) Details() map[string]any {
	d := map[string]any{"field": e.Field, "reason": e.Reason}
	if e.Index >= 0 {
		d["index"] = e.Index
	}
	return d
}

// FieldError builds a ValidationError that is not tied to a batch index.
func FieldError(field, reason string) *ValidationError {
	return &ValidationError{Index: -1, Field: field, Reason: reason}
}

// RateLimitError is returned when an action is refused inside a cooldown window.
type RateLimitError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s refused: retry after %s", e.Action, e.RetryAfter.Round(time.Second))
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// InterviewType is the modality of an interview.
type InterviewType string

const (
	InterviewBehavioral InterviewType = "behavioral"
	InterviewMCQ        InterviewType = "mcq"
	InterviewCoding     InterviewType = "coding"
	InterviewCombo      InterviewType = "combo"
)

// ParseInterviewType normalizes s and rejects unknown modalities.
func ParseInterviewType(s string) (InterviewType, error) {
	t := InterviewType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case InterviewBehavioral, InterviewMCQ, InterviewCoding, InterviewCombo:
		return t, nil
	}
	return "", FieldError("interviewType", fmt.Sprintf("unsupported interview type %q", s))
}

// IsMCQ reports whether answers are option ids rather than free text.
func (t InterviewType) IsMCQ() bool { return t == InterviewMCQ }

// VerificationSession is the KV-stored record of a candidate walking the gate.
type VerificationSession struct {
	ID             string            `json:"session_id"`
	CandidateEmail string            `json:"candidate_email"`
	InterviewID    string            `json:"interview_id"`
	InterviewType  InterviewType     `json:"interview_type"`
	Stage          Stage             `json:"stage"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivity   time.Time         `json:"last_activity"`
	ExpiresAt      time.Time         `json:"expires_at"`
	ClientMetadata map[string]string `json:"client_metadata,omitempty"`
	PhotoRef       string            `json:"photo_ref,omitempty"`
	OTP            *OTPChallenge     `json:"otp,omitempty"`
	OTPSentAt      time.Time         `json:"otp_sent_at,omitempty"`
	// Revision counts conditional writes; it matches the store's entry revision.
	Revision int64 `json:"revision"`
}

// OTPChallenge is the live one-time code of a session. Only the bcrypt hash is kept.
type OTPChallenge struct {
	Hash      string    `json:"hash"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Option is one choice of an MCQ question.
type Option struct {
	ID      string `json:"id" yaml:"id"`
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct,omitempty" yaml:"correct"`
}

// Question is an entry of an interview's question bank. Free-text questions have no options.
type Question struct {
	ID       string   `json:"id" yaml:"id"`
	Text     string   `json:"text" yaml:"text"`
	Category string   `json:"category,omitempty" yaml:"category"`
	Options  []Option `json:"options,omitempty" yaml:"options"`
}

// CorrectOptionID returns the id of the single option marked correct.
// A question with zero or several correct options is malformed and reports false.
func (q Question) CorrectOptionID() (string, bool) {
	id, n := "", 0
	for _, o := range q.Options {
		if o.Correct {
			id = o.ID
			n++
		}
	}
	return id, n == 1 && id != ""
}

// Interview is the relational record the candidate is evaluated against.
type Interview struct {
	ID          string
	Title       string
	Type        InterviewType
	RoundNumber int
	Questions   []Question
	CreatedAt   time.Time
}

// Answer is one element of an AnswerSubmission.
type Answer struct {
	QuestionID       string
	QuestionText     string
	Text             string
	SelectedOptionID string
	Confidence       *float64
	TimeSpentSeconds int
}

// IngestResult is the validated, normalized form of a submission.
type IngestResult struct {
	InterviewID       string
	CandidateEmail    string
	InterviewType     InterviewType
	Answers           []Answer
	TotalQuestions    int
	AnsweredCount     int
	CompletionRate    int
	TotalTimeSpent    int
	AverageConfidence *float64
}

// QuestionResult is the grading outcome of a single answer.
type QuestionResult struct {
	QuestionID       string `json:"questionId"`
	QuestionText     string `json:"question,omitempty"`
	Category         string `json:"category,omitempty"`
	Answered         bool   `json:"answered"`
	Correct          bool   `json:"correct"`
	SelectedOptionID string `json:"selectedOptionId,omitempty"`
	CorrectOptionID  string `json:"correctOptionId,omitempty"`
	TimeSpentSeconds int    `json:"timeSpent"`
}

// UngradedQuestion records an answer that could not be graded and why.
type UngradedQuestion struct {
	QuestionID string `json:"questionId"`
	Reason     string `json:"reason"`
}

// Discrepancy is recorded when the bank size and the answer count disagree.
type Discrepancy struct {
	BankSize    int `json:"bankSize"`
	AnswerCount int `json:"answerCount"`
}

// CategoryScore aggregates MCQ correctness per question category.
type CategoryScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Accuracy returns the rounded percentage of correct answers in the category.
func (c CategoryScore) Accuracy() int { return Percentage(c.Correct, c.Total) }

// ScoreResult is the Scoring Engine output.
type ScoreResult struct {
	InterviewType InterviewType            `json:"interviewType"`
	Score         int                      `json:"score"`
	MaxScore      int                      `json:"maxScore"`
	Percentage    int                      `json:"percentage"`
	Passed        bool                     `json:"passed"`
	PerQuestion   []QuestionResult         `json:"perQuestion"`
	Categories    map[string]CategoryScore `json:"categories,omitempty"`
	Ungraded      []UngradedQuestion       `json:"ungraded,omitempty"`
	Discrepancy   *Discrepancy             `json:"discrepancy,omitempty"`
}

// Feedback sources
const (
	FeedbackSourceRules     = "rules"
	FeedbackSourceGenerated = "generated"
)

// QuestionNote is the feedback attached to one graded question.
type QuestionNote struct {
	QuestionID string `json:"questionId"`
	Note       string `json:"note"`
}

// Feedback is the structured, human-readable summary embedded in a ScoredResult.
type Feedback struct {
	OverallPerformance string         `json:"overallPerformance"`
	Strengths          []string       `json:"strengths"`
	Improvements       []string       `json:"improvements"`
	PerQuestionNotes   []QuestionNote `json:"perQuestionNotes"`
	Source             string         `json:"source"`
}

// Candidate is the minimal candidate profile created on first submission.
type Candidate struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// ResultStatus of a ScoredResult row.
type ResultStatus string

const (
	ResultInProgress ResultStatus = "in_progress"
	ResultCompleted  ResultStatus = "completed"
)

// ScoredResult is the one-per-(interview, candidate) result row.
// Invariants: Score <= MaxScore; Passed == Score*100 >= 60*MaxScore (MaxScore > 0).
type ScoredResult struct {
	ID              string
	InterviewID     string
	CandidateID     string
	InterviewType   InterviewType
	Status          ResultStatus
	Score           int
	MaxScore        int
	Percentage      int
	DurationMinutes int
	Passed          bool
	Feedback        Feedback
	StartedAt       time.Time
	CompletedAt     time.Time
	RoundNumber     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// Inserted is true when the upsert created the row rather than overwriting it.
	Inserted bool
}

// Photo is a captured candidate photo.
type Photo struct {
	ID             string
	CandidateEmail string
	InterviewID    string
	MIME           string
	Size           int64
	Data           []byte
	CreatedAt      time.Time
}

// ResultCompletedEvent is published after a result row is written.
type ResultCompletedEvent struct {
	ResultID      string        `json:"result_id"`
	InterviewID   string        `json:"interview_id"`
	CandidateID   string        `json:"candidate_id"`
	InterviewType InterviewType `json:"interview_type"`
	Score         int           `json:"score"`
	MaxScore      int           `json:"max_score"`
	Percentage    int           `json:"percentage"`
	Passed        bool          `json:"passed"`
	Inserted      bool          `json:"inserted"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Ports

// KVStore is a TTL-backed key-value store. Get must report ErrNotFound for
// expired entries even when physical deletion has not happened yet.
type KVStore interface {
	Put(ctx Context, key string, value []byte, ttl time.Duration) error
	Get(ctx Context, key string) ([]byte, error)
	Del(ctx Context, keys ...string) error
	ListByPrefix(ctx Context, prefix string) ([][]byte, error)
	Refresh(ctx Context, key string, ttl time.Duration) error
	// CompareAndSwap writes value only when the stored revision equals rev.
	// It reports false, without error, when the entry changed since it was read.
	CompareAndSwap(ctx Context, key string, rev int64, value []byte, ttl time.Duration) (bool, error)
}

type CandidateRepository interface {
	FindByEmail(ctx Context, email string) (Candidate, error)
	// Create returns an error wrapping ErrConflict when the email already exists.
	Create(ctx Context, c Candidate) (Candidate, error)
}

type InterviewRepository interface {
	Get(ctx Context, id string) (Interview, error)
	Upsert(ctx Context, iv Interview) error
}

type ResultRepository interface {
	Upsert(ctx Context, r ScoredResult) (ScoredResult, error)
	Get(ctx Context, interviewID, candidateID string) (ScoredResult, error)
}

type PhotoRepository interface {
	Create(ctx Context, p Photo) (string, error)
	Delete(ctx Context, id string) error
}

// OTPNotifier delivers a one-time code out of band.
type OTPNotifier interface {
	SendOTP(ctx Context, email, interviewID, code string, expiresAt time.Time) error
}

// RateLimiter spends cost tokens from the bucket named by key's prefix.
type RateLimiter interface {
	Allow(ctx Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// FeedbackGenerator is the optional generative enrichment service.
type FeedbackGenerator interface {
	Generate(ctx Context, prompt string) (string, error)
}

// ResultPublisher emits result events to downstream consumers.
type ResultPublisher interface {
	PublishResultCompleted(ctx Context, ev ResultCompletedEvent) error
}

// Percentage returns round(part/whole*100) with halves rounded away from zero,
// and 0 when whole is not positive.
func Percentage(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	// integer form of math.Round for non-negative operands
	return (part*200 + whole) / (whole * 2)
}

// PassThreshold is the inclusive pass percentage.
const PassThreshold = 60

// Passed compares score/maxScore against PassThreshold without floating point.
func Passed(score, maxScore int) bool {
	if maxScore <= 0 {
		return false
	}
	return score*100 >= PassThreshold*maxScore
}

// Context is an alias so adapters and usecases share the std context type.
type Context = context.Context
