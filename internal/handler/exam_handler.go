package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/campushire/skillcheck/internal/middleware"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/campushire/skillcheck/internal/response"
	"github.com/campushire/skillcheck/internal/service"
	"github.com/campushire/skillcheck/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ExamStarter provisions exams for candidates.
type ExamStarter interface {
	StartExam(ctx context.Context, skillName, userEmail string) (*model.CandidateExam, error)
}

// ExamScorer grades submissions and lists recorded attempts.
type ExamScorer interface {
	Submit(ctx context.Context, req *model.SubmitExamRequest) (*model.ExamResult, error)
	Attempts(ctx context.Context, userEmail, skillName string, limit int) ([]model.SkillVerificationAttempt, error)
}

// ExamHandler handles the skill verification exam endpoints.
type ExamHandler struct {
	exams   ExamStarter
	scoring ExamScorer
	log     zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(exams ExamStarter, scoring ExamScorer, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		exams:   exams,
		scoring: scoring,
		log:     log.With().Str("component", "exam_handler").Logger(),
	}
}

// StartExam godoc
// POST /exam/start
// Returns the exam for a skill without its answer key, generating it on first use.
func (h *ExamHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !claims.Owns(req.UserEmail) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	exam, err := h.exams.StartExam(c.Request.Context(), req.SkillName, req.UserEmail)
	if err != nil {
		h.fail(c, err, "Start exam failed")
		return
	}

	response.Success(c, http.StatusOK, model.StartExamResponse{Exam: exam})
}

// SubmitExam godoc
// POST /exam/submit
// Scores a submission, records the attempt, and verifies the profile skill on a pass.
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !claims.Owns(req.UserEmail) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	result, err := h.scoring.Submit(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err, "Submit exam failed")
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ListAttempts godoc
// GET /exam/attempts?skillName=&limit=
// Lists the caller's recorded attempts, newest first.
func (h *ExamHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.Email == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	skill := strings.TrimSpace(c.Query("skillName"))

	attempts, err := h.scoring.Attempts(c.Request.Context(), claims.Email, skill, limit)
	if err != nil {
		h.fail(c, err, "List attempts failed")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

func (h *ExamHandler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrUserNotFound)
	case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrInvalidExamID):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrExamGeneration):
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg(msg)
		response.Fail(c, http.StatusInternalServerError, response.ErrExamGeneration)
	case errors.Is(err, service.ErrAttemptNotSaved):
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg(msg)
		response.Fail(c, http.StatusInternalServerError, response.ErrAttemptNotSaved)
	default:
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg(msg)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
