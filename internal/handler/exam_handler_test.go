package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campushire/skillcheck/internal/config"
	"github.com/campushire/skillcheck/internal/middleware"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/campushire/skillcheck/internal/response"
	"github.com/campushire/skillcheck/internal/service"
	"github.com/campushire/skillcheck/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

var testAuth = service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTIssuer: "campushire", JWTExpiry: time.Hour})

func tokenFor(t *testing.T, email string) string {
	t.Helper()
	tok, err := testAuth.IssueToken(email, "")
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type fakeStarter struct {
	err   error
	calls int
}

func (f *fakeStarter) StartExam(_ context.Context, skillName, userEmail string) (*model.CandidateExam, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.CandidateExam{
		ExamID:    "7b0f9a52-4f0e-4e8c-9a43-0d5f3c6b2a11",
		SkillName: skillName,
		Questions: []model.CandidateQuestion{
			{ID: 0, Question: "What is JSX?", Options: []string{"a", "b", "c", "d"}},
		},
		TimeLimit:    15,
		PassingScore: 60,
	}, nil
}

type fakeScorer struct {
	err      error
	lastReq  *model.SubmitExamRequest
	attempts []model.SkillVerificationAttempt
}

func (f *fakeScorer) Submit(_ context.Context, req *model.SubmitExamRequest) (*model.ExamResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if req.IsCanceled {
		return &model.ExamResult{Success: true, PassingScore: 60, TotalQuestions: 5,
			Results: []model.QuestionResult{{Question: "Exam canceled", UserAnswer: service.NoAnswer}}}, nil
	}
	return &model.ExamResult{Success: true, Score: 80, Passed: true, PassingScore: 60, CorrectAnswers: 4, TotalQuestions: 5,
		Results: []model.QuestionResult{}}, nil
}

func (f *fakeScorer) Attempts(_ context.Context, userEmail, skillName string, limit int) ([]model.SkillVerificationAttempt, error) {
	return f.attempts, f.err
}

func newExamEngine(starter ExamStarter, scorer ExamScorer) *gin.Engine {
	h := NewExamHandler(starter, scorer, zerolog.Nop())
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	g := r.Group("/exam", middleware.RequireBearer(testAuth))
	g.POST("/start", h.StartExam)
	g.POST("/submit", h.SubmitExam)
	g.GET("/attempts", h.ListAttempts)
	return r
}

func doJSON(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Error == nil {
		t.Fatalf("body %q is not an error response: %v", w.Body.String(), err)
	}
	if body.Metadata.RequestID == "" {
		t.Error("error response without request id")
	}
	return body.Error.Code
}

func TestStartExam(t *testing.T) {
	token := tokenFor(t, "ana@campus.edu")
	validBody := map[string]string{"skillName": "React", "userEmail": "ana@campus.edu"}

	tests := []struct {
		name     string
		token    string
		body     interface{}
		startErr error
		wantCode int
		wantErr  response.ErrCode
	}{
		{"no token", "", validBody, nil, http.StatusUnauthorized, response.ErrTokenRequired},
		{"bad token", "garbage", validBody, nil, http.StatusUnauthorized, response.ErrTokenInvalid},
		{"missing skill", token, map[string]string{"userEmail": "ana@campus.edu"}, nil, http.StatusBadRequest, response.ErrValidation},
		{"blank skill", token, map[string]string{"skillName": "  ", "userEmail": "ana@campus.edu"}, nil, http.StatusBadRequest, response.ErrValidation},
		{"missing email", token, map[string]string{"skillName": "React"}, nil, http.StatusBadRequest, response.ErrValidation},
		{"malformed json", token, `{"skillName":`, nil, http.StatusBadRequest, response.ErrValidation},
		{"other user", token, map[string]string{"skillName": "React", "userEmail": "bo@campus.edu"}, nil, http.StatusForbidden, response.ErrForbidden},
		{"unknown user", token, validBody, service.ErrUserNotFound, http.StatusNotFound, response.ErrUserNotFound},
		{"generation failed", token, validBody, fmt.Errorf("%w: timeout", service.ErrExamGeneration), http.StatusInternalServerError, response.ErrExamGeneration},
		{"store failed", token, validBody, errors.New("db down"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starter := &fakeStarter{err: tt.startErr}
			w := doJSON(newExamEngine(starter, &fakeScorer{}), http.MethodPost, "/exam/start", tt.token, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if got := errorCode(t, w); got != tt.wantErr {
				t.Errorf("code = %s, want %s", got, tt.wantErr)
			}
		})
	}
}

func TestStartExamSuccess(t *testing.T) {
	starter := &fakeStarter{}
	w := doJSON(newExamEngine(starter, &fakeScorer{}), http.MethodPost, "/exam/start",
		tokenFor(t, "ana@campus.edu"), map[string]string{"skillName": "React", "userEmail": "ana@campus.edu"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "correctAnswer") {
		t.Errorf("answer key leaked: %s", w.Body.String())
	}

	var body model.StartExamResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Exam == nil || body.Exam.SkillName != "React" || body.Exam.TimeLimit != 15 || len(body.Exam.Questions) != 1 {
		t.Errorf("exam = %+v", body.Exam)
	}
}

func TestSubmitExam(t *testing.T) {
	token := tokenFor(t, "ana@campus.edu")
	valid := map[string]interface{}{
		"examId":    "7b0f9a52-4f0e-4e8c-9a43-0d5f3c6b2a11",
		"answers":   []int{0, 1, 2, 3, 1},
		"userEmail": "ana@campus.edu",
		"timeSpent": 312,
	}

	tests := []struct {
		name      string
		body      interface{}
		submitErr error
		wantCode  int
	}{
		{"scored", valid, nil, http.StatusOK},
		{"bad exam id", map[string]interface{}{"examId": "nope", "answers": []int{}, "userEmail": "ana@campus.edu"}, nil, http.StatusBadRequest},
		{"missing answers", map[string]interface{}{"examId": valid["examId"], "userEmail": "ana@campus.edu"}, nil, http.StatusBadRequest},
		{"answer above range", map[string]interface{}{"examId": valid["examId"], "answers": []int{7, 0, 1, 2, 3}, "userEmail": "ana@campus.edu"}, nil, http.StatusBadRequest},
		{"answer below range", map[string]interface{}{"examId": valid["examId"], "answers": []int{-42, 0, 1, 2, 3}, "userEmail": "ana@campus.edu"}, nil, http.StatusBadRequest},
		{"answer overflows column", map[string]interface{}{"examId": valid["examId"], "answers": []int64{99999999999, 0, 1, 2, 3}, "userEmail": "ana@campus.edu"}, nil, http.StatusBadRequest},
		{"unknown exam", valid, service.ErrExamNotFound, http.StatusNotFound},
		{"unknown user", valid, service.ErrUserNotFound, http.StatusNotFound},
		{"persist failed", valid, service.ErrAttemptNotSaved, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := &fakeScorer{err: tt.submitErr}
			w := doJSON(newExamEngine(&fakeStarter{}, scorer), http.MethodPost, "/exam/submit", token, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode == http.StatusBadRequest {
				if got := errorCode(t, w); got != response.ErrValidation {
					t.Errorf("code = %s, want %s", got, response.ErrValidation)
				}
				if scorer.lastReq != nil {
					t.Errorf("invalid request reached the scorer: %+v", scorer.lastReq)
				}
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var res model.ExamResult
			if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
				t.Fatal(err)
			}
			if !res.Success || res.Score != 80 || !res.Passed {
				t.Errorf("result = %+v", res)
			}
			if scorer.lastReq.TimeSpent != 312 || len(scorer.lastReq.Answers) != 5 {
				t.Errorf("request = %+v", scorer.lastReq)
			}
		})
	}
}

func TestSubmitExamCanceledPassesFlag(t *testing.T) {
	scorer := &fakeScorer{}
	w := doJSON(newExamEngine(&fakeStarter{}, scorer), http.MethodPost, "/exam/submit", tokenFor(t, "ana@campus.edu"),
		map[string]interface{}{
			"examId":       "7b0f9a52-4f0e-4e8c-9a43-0d5f3c6b2a11",
			"answers":      []int{-1, -1, -1, -1, -1},
			"userEmail":    "ana@campus.edu",
			"isCanceled":   true,
			"cancelReason": "tab hidden",
		})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !scorer.lastReq.IsCanceled || scorer.lastReq.CancelReason != "tab hidden" {
		t.Errorf("request = %+v", scorer.lastReq)
	}
}

func TestListAttempts(t *testing.T) {
	scorer := &fakeScorer{attempts: []model.SkillVerificationAttempt{{SkillName: "React", Score: 80, Passed: true}}}
	r := newExamEngine(&fakeStarter{}, scorer)

	w := doJSON(r, http.MethodGet, "/exam/attempts?skillName=React", tokenFor(t, "ana@campus.edu"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Attempts []model.SkillVerificationAttempt `json:"attempts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Attempts) != 1 || body.Attempts[0].Score != 80 {
		t.Errorf("attempts = %+v", body.Attempts)
	}

	w = doJSON(r, http.MethodGet, "/exam/attempts", tokenFor(t, ""), nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("token without email: status = %d", w.Code)
	}
}
