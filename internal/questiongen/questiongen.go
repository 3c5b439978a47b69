// Package questiongen resolves exam question sets from an external
// language model. Every adapter returns questions that passed Validate.
package questiongen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/campushire/skillcheck/internal/model"
)

// ErrInvalidExam is returned when generated content does not have the fixed exam shape.
var ErrInvalidExam = errors.New("invalid exam format from generator")

// Generator produces a fixed-shape question set for a skill.
type Generator interface {
	Generate(ctx context.Context, skillName string, count int) ([]model.ExamQuestion, error)
	Name() string
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type generatedExam struct {
	Questions []model.ExamQuestion `json:"questions"`
}

// ParseQuestions extracts the outermost JSON object from raw model output
// and validates it holds exactly count questions.
func ParseQuestions(raw string, count int) ([]model.ExamQuestion, error) {
	match := jsonObject.FindString(raw)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidExam)
	}

	var exam generatedExam
	if err := json.Unmarshal([]byte(match), &exam); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExam, err)
	}

	for i := range exam.Questions {
		exam.Questions[i].Question = strings.TrimSpace(exam.Questions[i].Question)
		exam.Questions[i].Explanation = strings.TrimSpace(exam.Questions[i].Explanation)
	}

	if err := Validate(exam.Questions, count); err != nil {
		return nil, err
	}
	return exam.Questions, nil
}

// Validate checks the construction invariants of a question set.
func Validate(questions []model.ExamQuestion, count int) error {
	if len(questions) != count {
		return fmt.Errorf("%w: got %d questions, want %d", ErrInvalidExam, len(questions), count)
	}
	for i, q := range questions {
		switch {
		case q.Question == "":
			return fmt.Errorf("%w: question %d has no text", ErrInvalidExam, i)
		case len(q.Options) != model.OptionsPerQuestion:
			return fmt.Errorf("%w: question %d has %d options", ErrInvalidExam, i, len(q.Options))
		case q.CorrectAnswer < 0 || q.CorrectAnswer >= model.OptionsPerQuestion:
			return fmt.Errorf("%w: question %d correct answer %d out of range", ErrInvalidExam, i, q.CorrectAnswer)
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return fmt.Errorf("%w: question %d option %d is empty", ErrInvalidExam, i, j)
			}
		}
	}
	return nil
}
