package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam categories derived from the skill name.
const (
	CategoryFrontend = "Frontend"
	CategoryBackend  = "Backend"
	CategoryDatabase = "Database"
	CategoryCloud    = "Cloud"
	CategoryGeneral  = "General"
)

// OptionsPerQuestion is the fixed number of choices on every exam question.
const OptionsPerQuestion = 4

// ExamQuestion is one multiple choice item. CorrectAnswer indexes Options.
type ExamQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// SkillExam is the reusable exam for one skill name. It is created once and
// never mutated afterwards.
type SkillExam struct {
	ID           uuid.UUID      `json:"id"`
	SkillName    string         `json:"skillName"`
	Category     string         `json:"category"`
	Questions    []ExamQuestion `json:"questions"`
	PassingScore int            `json:"passingScore"`
	TimeLimit    int            `json:"timeLimit"` // minutes
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// CandidateQuestion is a question without its answer key.
type CandidateQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// CandidateExam is the exam payload sent to a candidate.
type CandidateExam struct {
	ExamID       string              `json:"examId"`
	SkillName    string              `json:"skillName"`
	Questions    []CandidateQuestion `json:"questions"`
	TimeLimit    int                 `json:"timeLimit"`
	PassingScore int                 `json:"passingScore"`
}

// ForCandidate strips correct answers and explanations.
func (e *SkillExam) ForCandidate() *CandidateExam {
	questions := make([]CandidateQuestion, len(e.Questions))
	for i, q := range e.Questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		questions[i] = CandidateQuestion{ID: i, Question: q.Question, Options: opts}
	}
	return &CandidateExam{
		ExamID:       e.ID.String(),
		SkillName:    e.SkillName,
		Questions:    questions,
		TimeLimit:    e.TimeLimit,
		PassingScore: e.PassingScore,
	}
}

// StartExamRequest is the payload of POST /exam/start.
type StartExamRequest struct {
	SkillName string `json:"skillName" binding:"required,notblank,max=100"`
	UserEmail string `json:"userEmail" binding:"required,email"`
}

// StartExamResponse wraps the candidate exam.
type StartExamResponse struct {
	Exam *CandidateExam `json:"exam"`
}
