package usecase

import (
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Performance buckets, keyed by percentage cut points.
const (
	BucketExcellent    = "excellent"
	BucketStrong       = "strong"
	BucketGood         = "good"
	BucketAverage      = "average"
	BucketBelowAverage = "below_average"
)

// PerformanceBucket maps a percentage onto its bucket.
func PerformanceBucket(pct int) string {
	switch {
	case pct >= 90:
		return BucketExcellent
	case pct >= 80:
		return BucketStrong
	case pct >= 70:
		return BucketGood
	case pct >= domain.PassThreshold:
		return BucketAverage
	default:
		return BucketBelowAverage
	}
}

type scorer interface {
	score(answers []domain.Answer, bank []domain.Question) domain.ScoreResult
}

func scorerFor(t domain.InterviewType) scorer {
	if t.IsMCQ() {
		return mcqScorer{}
	}
	return freeTextScorer{}
}

// Score grades answers against the interview's question bank.
func Score(itype domain.InterviewType, answers []domain.Answer, bank []domain.Question) domain.ScoreResult {
	res := scorerFor(itype).score(answers, bank)
	res.InterviewType = itype
	if len(bank) != len(answers) {
		res.Discrepancy = &domain.Discrepancy{BankSize: len(bank), AnswerCount: len(answers)}
	}
	res.MaxScore = min(res.MaxScore, len(bank), len(answers))
	res.Score = min(res.Score, res.MaxScore)
	res.Percentage = domain.Percentage(res.Score, res.MaxScore)
	res.Passed = domain.Passed(res.Score, res.MaxScore)
	return res
}

type mcqScorer struct{}

func (mcqScorer) score(answers []domain.Answer, bank []domain.Question) domain.ScoreResult {
	byID := make(map[string]domain.Question, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}
	var res domain.ScoreResult
	res.PerQuestion = make([]domain.QuestionResult, 0, len(answers))
	cats := map[string]domain.CategoryScore{}
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			res.Ungraded = append(res.Ungraded, domain.UngradedQuestion{QuestionID: a.QuestionID, Reason: "question not in bank"})
			continue
		}
		correctID, ok := q.CorrectOptionID()
		if !ok {
			res.Ungraded = append(res.Ungraded, domain.UngradedQuestion{QuestionID: a.QuestionID, Reason: "question has no single correct option"})
			continue
		}
		// case-sensitive on purpose: option ids are opaque
		correct := a.SelectedOptionID != "" && a.SelectedOptionID == correctID
		res.PerQuestion = append(res.PerQuestion, domain.QuestionResult{
			QuestionID:       a.QuestionID,
			QuestionText:     q.Text,
			Category:         q.Category,
			Answered:         a.SelectedOptionID != "",
			Correct:          correct,
			SelectedOptionID: a.SelectedOptionID,
			CorrectOptionID:  correctID,
			TimeSpentSeconds: a.TimeSpentSeconds,
		})
		res.MaxScore++
		if correct {
			res.Score++
		}
		if q.Category != "" {
			c := cats[q.Category]
			c.Total++
			if correct {
				c.Correct++
			}
			cats[q.Category] = c
		}
	}
	if len(cats) > 0 {
		res.Categories = cats
	}
	return res
}

type freeTextScorer struct{}

func (freeTextScorer) score(answers []domain.Answer, bank []domain.Question) domain.ScoreResult {
	cats := make(map[string]string, len(bank))
	for _, q := range bank {
		cats[q.ID] = q.Category
	}
	var res domain.ScoreResult
	res.PerQuestion = make([]domain.QuestionResult, 0, len(answers))
	for _, a := range answers {
		answered := isAnswered(domain.InterviewBehavioral, a)
		res.PerQuestion = append(res.PerQuestion, domain.QuestionResult{
			QuestionID:       a.QuestionID,
			QuestionText:     a.QuestionText,
			Category:         cats[a.QuestionID],
			Answered:         answered,
			Correct:          answered,
			TimeSpentSeconds: a.TimeSpentSeconds,
		})
		if answered {
			res.Score++
		}
	}
	res.MaxScore = len(answers)
	return res
}
