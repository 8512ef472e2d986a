package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

var bucketSummary = map[string]string{
	BucketExcellent:    "Excellent performance",
	BucketStrong:       "Strong performance",
	BucketGood:         "Good performance",
	BucketAverage:      "Average performance",
	BucketBelowAverage: "Below average performance",
}

const (
	defaultStrength    = "Shows potential and completed the interview"
	defaultImprovement = "Keep practising with timed mock interviews to build consistency"
)

// FeedbackService turns a ScoreResult into candidate-facing feedback.
// Generator is optional; when nil or failing the rule-based feedback is used.
type FeedbackService struct {
	Generator domain.FeedbackGenerator
	Timeout   time.Duration
}

// NewFeedbackService constructs a FeedbackService. g may be nil.
func NewFeedbackService(g domain.FeedbackGenerator, timeout time.Duration) FeedbackService {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return FeedbackService{Generator: g, Timeout: timeout}
}

// Synthesize never fails: generator errors, panics and unparsable output all
// resolve to the rule-based feedback.
func (s FeedbackService) Synthesize(ctx domain.Context, sr domain.ScoreResult, avgConfidence *float64, totalTimeSpent int) domain.Feedback {
	ctx, span := otel.Tracer("usecase.feedback").Start(ctx, "feedback.Synthesize")
	defer span.End()

	rules := RuleFeedback(sr, avgConfidence, totalTimeSpent)
	if s.Generator == nil {
		observability.RecordFeedbackSource(domain.FeedbackSourceRules, "disabled")
		return rules
	}
	fb, reason := s.enrich(ctx, sr, rules, avgConfidence, totalTimeSpent)
	if reason != "" {
		observability.LoggerFromContext(ctx).Warn("feedback generation fell back to rules", slog.String("reason", reason))
		observability.RecordFeedbackSource(domain.FeedbackSourceRules, reason)
		return rules
	}
	observability.RecordFeedbackSource(domain.FeedbackSourceGenerated, "")
	return fb
}

type generatedFeedback struct {
	OverallPerformance string                `json:"overallPerformance"`
	Strengths          []string              `json:"strengths"`
	Improvements       []string              `json:"improvements"`
	PerQuestionNotes   []domain.QuestionNote `json:"perQuestionNotes"`
}

var errGeneratorPanic = errors.New("feedback generator panicked")

type generation struct {
	out string
	err error
}

// enrich returns the merged feedback, or a non-empty fallback reason. The
// generator runs in its own goroutine so that neither a panic nor a call that
// ignores ctx can escape the timeout.
func (s FeedbackService) enrich(ctx domain.Context, sr domain.ScoreResult, rules domain.Feedback, avgConfidence *float64, totalTimeSpent int) (domain.Feedback, string) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	prompt := feedbackPrompt(sr, rules, avgConfidence, totalTimeSpent)
	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{err: fmt.Errorf("%w: %v", errGeneratorPanic, r)}
			}
		}()
		out, err := s.Generator.Generate(ctx, prompt)
		done <- generation{out: out, err: err}
	}()

	var g generation
	select {
	case <-ctx.Done():
		return domain.Feedback{}, "timeout"
	case g = <-done:
	}
	switch {
	case errors.Is(g.err, errGeneratorPanic):
		return domain.Feedback{}, "panic"
	case errors.Is(g.err, context.DeadlineExceeded), errors.Is(g.err, domain.ErrUpstreamTimeout):
		return domain.Feedback{}, "timeout"
	case g.err != nil:
		return domain.Feedback{}, "error"
	}
	var parsed generatedFeedback
	if err := json.Unmarshal([]byte(g.out), &parsed); err != nil || strings.TrimSpace(parsed.OverallPerformance) == "" {
		return domain.Feedback{}, "invalid_output"
	}
	return mergeGenerated(parsed, sr, rules), ""
}

// maxGeneratedRunes bounds each generated sentence stored with a result.
const maxGeneratedRunes = 500

// mergeGenerated keeps the generated prose but never lets a list go empty and
// drops notes about questions that were not graded.
func mergeGenerated(g generatedFeedback, sr domain.ScoreResult, rules domain.Feedback) domain.Feedback {
	fb := domain.Feedback{
		OverallPerformance: textx.Truncate(strings.TrimSpace(g.OverallPerformance), maxGeneratedRunes),
		Strengths:          nonBlank(g.Strengths),
		Improvements:       nonBlank(g.Improvements),
		Source:             domain.FeedbackSourceGenerated,
	}
	if len(fb.Strengths) == 0 {
		fb.Strengths = rules.Strengths
	}
	if len(fb.Improvements) == 0 {
		fb.Improvements = rules.Improvements
	}
	graded := make(map[string]struct{}, len(sr.PerQuestion))
	for _, q := range sr.PerQuestion {
		graded[q.QuestionID] = struct{}{}
	}
	for _, n := range g.PerQuestionNotes {
		if _, ok := graded[n.QuestionID]; ok && strings.TrimSpace(n.Note) != "" {
			fb.PerQuestionNotes = append(fb.PerQuestionNotes, domain.QuestionNote{QuestionID: n.QuestionID, Note: textx.Truncate(strings.TrimSpace(n.Note), maxGeneratedRunes)})
		}
	}
	if len(fb.PerQuestionNotes) == 0 {
		fb.PerQuestionNotes = rules.PerQuestionNotes
	}
	return fb
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, textx.Truncate(s, maxGeneratedRunes))
		}
	}
	return out
}

func feedbackPrompt(sr domain.ScoreResult, rules domain.Feedback, avgConfidence *float64, totalTimeSpent int) string {
	facts := map[string]any{
		"interviewType":    sr.InterviewType,
		"score":            sr.Score,
		"maxScore":         sr.MaxScore,
		"percentage":       sr.Percentage,
		"passed":           sr.Passed,
		"bucket":           PerformanceBucket(sr.Percentage),
		"totalTimeSeconds": totalTimeSpent,
		"questions":        sr.PerQuestion,
		"categories":       sr.Categories,
		"ruleSummary":      rules.OverallPerformance,
	}
	if avgConfidence != nil {
		facts["averageConfidence"] = *avgConfidence
	}
	b, _ := json.Marshal(facts)
	return "Graded interview facts:\n" + string(b)
}

// RuleFeedback builds deterministic feedback from independent threshold
// checks. Strengths and improvements always hold at least one entry.
func RuleFeedback(sr domain.ScoreResult, avgConfidence *float64, totalTimeSpent int) domain.Feedback {
	n := max(len(sr.PerQuestion), 1)
	perQuestion := totalTimeSpent / n
	pct := sr.Percentage

	var strengths, improvements []string

	switch {
	case pct >= 80:
		strengths = append(strengths, fmt.Sprintf("High overall score of %d%%", pct))
	case pct < domain.PassThreshold:
		improvements = append(improvements, fmt.Sprintf("Overall score of %d%% is below the %d%% pass mark", pct, domain.PassThreshold))
	}

	cats := make([]string, 0, len(sr.Categories))
	for c := range sr.Categories {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		acc := sr.Categories[c].Accuracy()
		switch {
		case acc >= 80:
			strengths = append(strengths, fmt.Sprintf("Strong accuracy in %s (%d%%)", c, acc))
		case acc < domain.PassThreshold:
			improvements = append(improvements, fmt.Sprintf("Review %s topics (%d%% accuracy)", c, acc))
		}
	}

	switch {
	case perQuestion < 30:
		strengths = append(strengths, "Answered questions efficiently")
	case perQuestion >= 60:
		improvements = append(improvements, "Work on pacing; answers took over a minute on average")
	}

	if avgConfidence != nil {
		conf := *avgConfidence
		switch {
		case conf >= 0.8 && pct >= 70:
			strengths = append(strengths, "Confidence was well calibrated with results")
		case conf >= 0.8 && pct < domain.PassThreshold:
			improvements = append(improvements, "Confidence ran ahead of accuracy; double-check answers before committing")
		case conf < 0.5:
			improvements = append(improvements, "Build confidence by reviewing the fundamentals")
		}
	}

	unanswered := 0
	for _, q := range sr.PerQuestion {
		if !q.Answered {
			unanswered++
		}
	}
	if unanswered > 0 {
		improvements = append(improvements, fmt.Sprintf("Left %d question(s) unanswered", unanswered))
	}

	if len(strengths) == 0 {
		strengths = []string{defaultStrength}
	}
	if len(improvements) == 0 {
		improvements = []string{defaultImprovement}
	}

	return domain.Feedback{
		OverallPerformance: fmt.Sprintf("%s (%d%%). %s", bucketSummary[PerformanceBucket(pct)], pct, timeRemark(perQuestion)),
		Strengths:          strengths,
		Improvements:       improvements,
		PerQuestionNotes:   questionNotes(sr),
		Source:             domain.FeedbackSourceRules,
	}
}

func timeRemark(perQuestion int) string {
	switch {
	case perQuestion < 30:
		return fmt.Sprintf("Fast time management at %ds per question.", perQuestion)
	case perQuestion < 60:
		return fmt.Sprintf("Moderate time management at %ds per question.", perQuestion)
	default:
		return fmt.Sprintf("Slow time management at %ds per question.", perQuestion)
	}
}

func questionNotes(sr domain.ScoreResult) []domain.QuestionNote {
	notes := make([]domain.QuestionNote, 0, len(sr.PerQuestion))
	for _, q := range sr.PerQuestion {
		var note string
		switch {
		case !q.Answered:
			note = "Not answered"
		case q.CorrectOptionID == "":
			note = "Answered"
		case q.Correct:
			note = "Correct"
		default:
			note = fmt.Sprintf("Selected %s; the correct option is %s", q.SelectedOptionID, q.CorrectOptionID)
		}
		notes = append(notes, domain.QuestionNote{QuestionID: q.QuestionID, Note: note})
	}
	return notes
}
