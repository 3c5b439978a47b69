package service

import (
	"math"

	"github.com/campushire/skillcheck/internal/model"
)

// NoAnswer is shown for questions left unanswered.
const NoAnswer = "No answer"

// DefaultCancelReason is recorded when a canceled submission gives none.
const DefaultCancelReason = "Exam was canceled due to a proctoring violation."

// Outcome is the graded result of one submission.
type Outcome struct {
	Score          int
	Passed         bool
	CorrectAnswers int
	TotalQuestions int
	Results        []model.QuestionResult
}

// Grade scores answers against the exam's key. Missing or out-of-range
// answers count as unanswered; extra answers are ignored.
func Grade(exam *model.SkillExam, answers []int) Outcome {
	total := len(exam.Questions)
	results := make([]model.QuestionResult, total)
	correct := 0

	for i, q := range exam.Questions {
		selected := model.Unanswered
		if i < len(answers) {
			selected = answers[i]
		}

		userAnswer := NoAnswer
		if selected >= 0 && selected < len(q.Options) {
			userAnswer = q.Options[selected]
		}

		var correctText string
		if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options) {
			correctText = q.Options[q.CorrectAnswer]
		}

		isCorrect := selected == q.CorrectAnswer
		if isCorrect {
			correct++
		}

		results[i] = model.QuestionResult{
			Question:      q.Question,
			UserAnswer:    userAnswer,
			CorrectAnswer: correctText,
			IsCorrect:     isCorrect,
			Explanation:   q.Explanation,
		}
	}

	score := Percent(correct, total)
	return Outcome{
		Score:          score,
		Passed:         score >= exam.PassingScore,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Results:        results,
	}
}

// CanceledOutcome is the result of a canceled attempt: zero score and a
// single entry carrying the reason.
func CanceledOutcome(exam *model.SkillExam, reason string) Outcome {
	if reason == "" {
		reason = DefaultCancelReason
	}
	return Outcome{
		Score:          0,
		Passed:         false,
		CorrectAnswers: 0,
		TotalQuestions: len(exam.Questions),
		Results: []model.QuestionResult{{
			Question:      "Exam canceled",
			UserAnswer:    NoAnswer,
			CorrectAnswer: "",
			IsCorrect:     false,
			Explanation:   reason,
		}},
	}
}

// Percent returns round(100 * correct / total), or 0 for an empty exam.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// Result converts an outcome into the response payload.
func (o Outcome) Result(passingScore int) *model.ExamResult {
	return &model.ExamResult{
		Success:        true,
		Score:          o.Score,
		Passed:         o.Passed,
		PassingScore:   passingScore,
		CorrectAnswers: o.CorrectAnswers,
		TotalQuestions: o.TotalQuestions,
		Results:        o.Results,
	}
}
