package usecase_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

func mcqQuestion(id, category, correct string) domain.Question {
	q := domain.Question{ID: id, Text: "Question " + id, Category: category}
	for _, o := range []string{"a", "b", "c", "d"} {
		q.Options = append(q.Options, domain.Option{ID: o, Text: "Option " + o, Correct: o == correct})
	}
	return q
}

func TestScore_MCQScenario(t *testing.T) {
	bank := []domain.Question{mcqQuestion("q1", "", "b"), mcqQuestion("q2", "", "d")}
	answers := []domain.Answer{
		{QuestionID: "q1", SelectedOptionID: "b"},
		{QuestionID: "q2", SelectedOptionID: "c"},
	}
	res := usecase.Score(domain.InterviewMCQ, answers, bank)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 2, res.MaxScore)
	assert.Equal(t, 50, res.Percentage)
	assert.False(t, res.Passed)
	assert.Nil(t, res.Discrepancy)
	require.Len(t, res.PerQuestion, 2)
	assert.True(t, res.PerQuestion[0].Correct)
	assert.False(t, res.PerQuestion[1].Correct)
	assert.Equal(t, "d", res.PerQuestion[1].CorrectOptionID)
}

func TestScore_BehavioralScenario(t *testing.T) {
	bank := make([]domain.Question, 5)
	answers := make([]domain.Answer, 5)
	for i := range bank {
		id := fmt.Sprintf("q%d", i+1)
		bank[i] = domain.Question{ID: id, Text: "Tell me about " + id}
		answers[i] = domain.Answer{QuestionID: id}
		if i < 3 {
			answers[i].Text = "A thoughtful answer"
		}
	}
	res := usecase.Score(domain.InterviewBehavioral, answers, bank)
	assert.Equal(t, 3, res.Score)
	assert.Equal(t, 5, res.MaxScore)
	assert.Equal(t, 60, res.Percentage)
	assert.True(t, res.Passed)
}

func TestScore_MCQIsCaseSensitiveAndGradesUnanswered(t *testing.T) {
	bank := []domain.Question{mcqQuestion("q1", "", "b"), mcqQuestion("q2", "", "a")}
	answers := []domain.Answer{{QuestionID: "q1", SelectedOptionID: "B"}, {QuestionID: "q2"}}
	res := usecase.Score(domain.InterviewMCQ, answers, bank)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 2, res.MaxScore)
	assert.False(t, res.PerQuestion[1].Answered)
}

func TestScore_MCQUngradedAndCategories(t *testing.T) {
	malformed := domain.Question{ID: "q3", Options: []domain.Option{{ID: "a", Correct: true}, {ID: "b", Correct: true}}}
	bank := []domain.Question{mcqQuestion("q1", "go", "a"), mcqQuestion("q2", "sql", "c"), malformed, mcqQuestion("q4", "go", "b")}
	answers := []domain.Answer{
		{QuestionID: "q1", SelectedOptionID: "a"},
		{QuestionID: "q2", SelectedOptionID: "a"},
		{QuestionID: "q3", SelectedOptionID: "a"},
		{QuestionID: "q9", SelectedOptionID: "a"},
	}
	res := usecase.Score(domain.InterviewMCQ, answers, bank)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 2, res.MaxScore)
	require.Len(t, res.Ungraded, 2)
	assert.Equal(t, "q3", res.Ungraded[0].QuestionID)
	assert.Equal(t, "q9", res.Ungraded[1].QuestionID)
	assert.Equal(t, domain.CategoryScore{Correct: 1, Total: 1}, res.Categories["go"])
	assert.Equal(t, 0, res.Categories["sql"].Accuracy())
	assert.Nil(t, res.Discrepancy, "sizes agree even though some answers are ungraded")
}

func TestScore_DiscrepancyBoundsMaxScore(t *testing.T) {
	bank := []domain.Question{{ID: "q1"}, {ID: "q2"}}
	answers := []domain.Answer{{QuestionID: "q1", Text: "a"}, {QuestionID: "q2", Text: "b"}, {QuestionID: "q3", Text: "c"}}
	res := usecase.Score(domain.InterviewCoding, answers, bank)
	assert.Equal(t, 2, res.MaxScore)
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 100, res.Percentage)
	require.NotNil(t, res.Discrepancy)
	assert.Equal(t, domain.Discrepancy{BankSize: 2, AnswerCount: 3}, *res.Discrepancy)
}

func TestScore_EmptyBankGivesZero(t *testing.T) {
	res := usecase.Score(domain.InterviewCombo, []domain.Answer{{QuestionID: "q1", Text: "x"}}, nil)
	assert.Equal(t, 0, res.MaxScore)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.Percentage)
	assert.False(t, res.Passed)
}

func TestScore_Bounds(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for answered := 0; answered <= n; answered++ {
			bank := make([]domain.Question, n)
			answers := make([]domain.Answer, n)
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("q%d", i)
				bank[i] = mcqQuestion(id, "", "a")
				answers[i] = domain.Answer{QuestionID: id}
				if i < answered {
					answers[i].SelectedOptionID = "a"
				}
			}
			res := usecase.Score(domain.InterviewMCQ, answers, bank)
			assert.GreaterOrEqual(t, res.Score, 0)
			assert.LessOrEqual(t, res.Score, res.MaxScore)
			assert.GreaterOrEqual(t, res.Percentage, 0)
			assert.LessOrEqual(t, res.Percentage, 100)
			assert.Equal(t, res.Score*100 >= 60*res.MaxScore, res.Passed, "n=%d answered=%d", n, answered)
		}
	}
}

func TestPerformanceBucket(t *testing.T) {
	cases := map[int]string{
		100: usecase.BucketExcellent, 90: usecase.BucketExcellent,
		89: usecase.BucketStrong, 80: usecase.BucketStrong,
		79: usecase.BucketGood, 70: usecase.BucketGood,
		69: usecase.BucketAverage, 60: usecase.BucketAverage,
		59: usecase.BucketBelowAverage, 0: usecase.BucketBelowAverage,
	}
	for pct, want := range cases {
		assert.Equal(t, want, usecase.PerformanceBucket(pct), "pct=%d", pct)
	}
}
