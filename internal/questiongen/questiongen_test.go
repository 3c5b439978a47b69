package questiongen

import (
	"errors"
	"strings"
	"testing"

	"github.com/campushire/skillcheck/internal/model"
)

const validBody = `{"questions": [
 {"question": "Q1", "options": ["a","b","c","d"], "correctAnswer": 0, "explanation": "e1"},
 {"question": "Q2", "options": ["a","b","c","d"], "correctAnswer": 1},
 {"question": "Q3", "options": ["a","b","c","d"], "correctAnswer": 2},
 {"question": "Q4", "options": ["a","b","c","d"], "correctAnswer": 3},
 {"question": "Q5", "options": ["a","b","c","d"], "correctAnswer": 0}
]}`

func TestParseQuestions(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		qs, err := ParseQuestions(validBody, 5)
		if err != nil {
			t.Fatalf("ParseQuestions() error = %v", err)
		}
		if len(qs) != 5 {
			t.Fatalf("got %d questions, want 5", len(qs))
		}
		if qs[0].Explanation != "e1" || qs[3].CorrectAnswer != 3 {
			t.Errorf("unexpected decode: %+v", qs)
		}
	})

	t.Run("wrapped in prose and code fence", func(t *testing.T) {
		raw := "Sure! Here is the exam:\n```json\n" + validBody + "\n```\nGood luck."
		if _, err := ParseQuestions(raw, 5); err != nil {
			t.Fatalf("ParseQuestions() error = %v", err)
		}
	})

	tests := []struct {
		name string
		raw  string
	}{
		{"no json", "I cannot help with that."},
		{"broken json", `{"questions": [`},
		{"too few questions", `{"questions": [{"question": "Q1", "options": ["a","b","c","d"], "correctAnswer": 0}]}`},
		{"three options", strings.Replace(validBody, `["a","b","c","d"], "correctAnswer": 2`, `["a","b","c"], "correctAnswer": 2`, 1)},
		{"answer out of range", strings.Replace(validBody, `"correctAnswer": 3`, `"correctAnswer": 4`, 1)},
		{"empty question", strings.Replace(validBody, `"Q2"`, `"  "`, 1)},
		{"empty option", strings.Replace(validBody, `["a","b","c","d"], "correctAnswer": 1`, `["a","","c","d"], "correctAnswer": 1`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuestions(tt.raw, 5)
			if !errors.Is(err, ErrInvalidExam) {
				t.Errorf("ParseQuestions() error = %v, want ErrInvalidExam", err)
			}
		})
	}
}

func TestValidateCount(t *testing.T) {
	q := model.ExamQuestion{Question: "q", Options: []string{"a", "b", "c", "d"}}
	if err := Validate([]model.ExamQuestion{q, q, q, q, q}, 5); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := Validate([]model.ExamQuestion{q, q, q, q, q, q}, 5); !errors.Is(err, ErrInvalidExam) {
		t.Errorf("Validate() with 6 questions error = %v, want ErrInvalidExam", err)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		skill string
		want  string
	}{
		{"React", model.CategoryFrontend},
		{"Next.js", model.CategoryFrontend},
		{"Django REST", model.CategoryBackend},
		{"PostgreSQL", model.CategoryDatabase},
		{"Kubernetes", model.CategoryCloud},
		{"Project Management", model.CategoryGeneral},
		// "javascript" contains "java" but frontend is checked first.
		{"JavaScript", model.CategoryFrontend},
	}
	for _, tt := range tests {
		t.Run(tt.skill, func(t *testing.T) {
			if got := Categorize(tt.skill); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.skill, got, tt.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Go", 5)
	for _, want := range []string{`"Go"`, "exactly 5 multiple choice", "exactly 4 options", "correctAnswer"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
