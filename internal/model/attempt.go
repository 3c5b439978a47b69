package model

import (
	"time"

	"github.com/google/uuid"
)

// Unanswered marks a question with no selected option.
const Unanswered = -1

// SkillVerificationAttempt is the write-once audit record of one exam attempt.
type SkillVerificationAttempt struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	UserEmail    string    `json:"userEmail"`
	SkillName    string    `json:"skillName"`
	ExamID       uuid.UUID `json:"examId"`
	Answers      []int     `json:"answers"`
	Score        int       `json:"score"`
	Passed       bool      `json:"passed"`
	TimeSpent    int       `json:"timeSpent"` // seconds
	IsCanceled   bool      `json:"isCanceled"`
	CancelReason string    `json:"cancelReason,omitempty"`
	AttemptedAt  time.Time `json:"attemptedAt"`
}

// SubmitExamRequest is the payload of POST /exam/submit.
type SubmitExamRequest struct {
	ExamID       string `json:"examId" binding:"required,uuid"`
	Answers      []int  `json:"answers" binding:"required,dive,min=-1,max=3"` // -1 is unanswered
	UserEmail    string `json:"userEmail" binding:"required,email"`
	TimeSpent    int    `json:"timeSpent" binding:"min=0"`
	IsCanceled   bool   `json:"isCanceled"`
	CancelReason string `json:"cancelReason,omitempty" binding:"max=500"`
}

// QuestionResult is the post-submission breakdown of one question.
type QuestionResult struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation,omitempty"`
}

// ExamResult is the response of POST /exam/submit.
type ExamResult struct {
	Success        bool             `json:"success"`
	Score          int              `json:"score"`
	Passed         bool             `json:"passed"`
	PassingScore   int              `json:"passingScore"`
	CorrectAnswers int              `json:"correctAnswers"`
	TotalQuestions int              `json:"totalQuestions"`
	Results        []QuestionResult `json:"results"`
}

// LocalFailureResult is the zero-score result a client shows when the
// submission never reached the server.
func LocalFailureResult(passingScore, totalQuestions int) *ExamResult {
	return &ExamResult{
		Success:        false,
		PassingScore:   passingScore,
		TotalQuestions: totalQuestions,
		Results:        []QuestionResult{},
	}
}
