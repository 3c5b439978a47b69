package examclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campushire/skillcheck/internal/model"
	"github.com/campushire/skillcheck/internal/response"
	ws "github.com/campushire/skillcheck/internal/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const testExamID = "7b0f9a52-4f0e-4e8c-9a43-0d5f3c6b2a11"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code response.ErrCode) {
	writeJSON(w, status, response.ErrorResponse{
		Error: &response.ErrorBody{Code: code, Message: response.GetMessage(code)},
	})
}

func TestStartExam(t *testing.T) {
	var gotAuth string
	var gotReq model.StartExamRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/exam/start" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		writeJSON(w, http.StatusOK, model.StartExamResponse{Exam: &model.CandidateExam{
			ExamID:       testExamID,
			SkillName:    "React",
			Questions:    []model.CandidateQuestion{{ID: 0, Question: "q1", Options: []string{"a", "b", "c", "d"}}},
			TimeLimit:    15,
			PassingScore: 70,
		}})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok")
	exam, err := c.StartExam(context.Background(), "React", "ana@campus.edu")
	if err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.SkillName != "React" || gotReq.UserEmail != "ana@campus.edu" {
		t.Errorf("request = %+v", gotReq)
	}
	if exam.ExamID != testExamID || len(exam.Questions) != 1 || exam.TimeLimit != 15 {
		t.Errorf("exam = %+v", exam)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     response.ErrCode
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, response.ErrTokenInvalid, ErrUnauthorized},
		{"user not found", http.StatusNotFound, response.ErrUserNotFound, ErrNotFound},
		{"generation failed", http.StatusInternalServerError, response.ErrExamGeneration, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sent := make(chan string, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id := r.Header.Get(response.HeaderRequestID)
				sent <- id
				w.Header().Set(response.HeaderRequestID, id)
				writeError(w, tt.status, tt.code)
			}))
			defer srv.Close()

			_, err := New(srv.URL, "tok").StartExam(context.Background(), "React", "ana@campus.edu")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Code != tt.code {
				t.Errorf("got %d %s", apiErr.Status, apiErr.Code)
			}
			id := <-sent
			if _, perr := uuid.Parse(id); perr != nil || apiErr.RequestID != id {
				t.Errorf("request id sent %q, error carries %q", id, apiErr.RequestID)
			}
			if !strings.Contains(err.Error(), id) {
				t.Errorf("error text %q lacks the request id", err.Error())
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			if errors.Is(err, ErrUnauthorized) && tt.sentinel != ErrUnauthorized {
				t.Errorf("unexpected ErrUnauthorized match")
			}
		})
	}
}

func TestMissingTokenSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").SubmitExam(context.Background(), &model.SubmitExamRequest{ExamID: testExamID})
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("error = %v, want ErrMissingToken", err)
	}
	if called {
		t.Error("request was sent without a token")
	}
}

func TestSubmitExam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.SubmitExamRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ExamID != testExamID || len(req.Answers) != 2 || !req.IsCanceled {
			t.Errorf("request = %+v", req)
		}
		writeJSON(w, http.StatusOK, model.ExamResult{Success: true, PassingScore: 70, TotalQuestions: 2, Results: []model.QuestionResult{}})
	}))
	defer srv.Close()

	res, err := New(srv.URL, "tok").SubmitExam(context.Background(), &model.SubmitExamRequest{
		ExamID: testExamID, Answers: []int{-1, -1}, UserEmail: "ana@campus.edu", IsCanceled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Passed || res.TotalQuestions != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestAttemptsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("skillName"); got != "Go" {
			t.Errorf("skillName = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"attempts": []model.SkillVerificationAttempt{{ID: 2, SkillName: "Go", Score: 80, Passed: true}},
		})
	}))
	defer srv.Close()

	list, err := New(srv.URL, "tok").Attempts(context.Background(), "Go", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Score != 80 {
		t.Errorf("attempts = %+v", list)
	}
}

// ─── Proctor reporter ───────────────────────────────────────────────

type streamRecorder struct {
	mu     sync.Mutex
	path   string
	token  string
	frames []ws.RequestPayload

	// arrived and hold stall the handshake when set.
	arrived chan struct{}
	hold    chan struct{}
}

func (s *streamRecorder) serve(t *testing.T, deadline time.Time) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.path = r.URL.Path
		s.token = r.URL.Query().Get("token")
		arrived, hold := s.arrived, s.hold
		s.arrived = nil
		s.mu.Unlock()

		if arrived != nil {
			close(arrived)
			<-hold
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var msg ws.RequestPayload
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			s.mu.Lock()
			s.frames = append(s.frames, msg)
			s.mu.Unlock()

			switch {
			case msg.Action == ws.ActionBegin:
				conn.WriteJSON(ws.SuccessResponse{Event: ws.EventSuccess, Status: ws.StatusRegistered, Deadline: &deadline})
			case msg.Kind == "bogus":
				conn.WriteJSON(ws.ErrorResponse{Event: ws.EventError, Error: "unknown event kind: bogus"})
			default:
				conn.WriteJSON(ws.SuccessResponse{Event: ws.EventSuccess, Status: ws.StatusRecorded})
			}
		}
	}))
}

func TestProctorReporter(t *testing.T) {
	deadline := time.Date(2026, 1, 5, 10, 15, 0, 0, time.UTC)
	rec := &streamRecorder{}
	srv := rec.serve(t, deadline)
	defer srv.Close()

	r := New(srv.URL, "tok").Reporter()
	ctx := context.Background()

	if err := r.Report(ctx, model.ProctorEvent{Kind: model.ProctorActionBlocked}); !errors.Is(err, ErrReporterClosed) {
		t.Fatalf("Report before Begin = %v, want ErrReporterClosed", err)
	}

	if err := r.Begin(ctx, testExamID); err != nil {
		t.Fatal(err)
	}
	if !r.Deadline().Equal(deadline) {
		t.Errorf("Deadline = %v, want %v", r.Deadline(), deadline)
	}

	at := time.Date(2026, 1, 5, 10, 3, 0, 0, time.UTC)
	err := r.Report(ctx, model.ProctorEvent{
		Kind:       model.ProctorActionBlocked,
		Detail:     json.RawMessage(`{"event":"copy"}`),
		RecordedAt: at,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Report(ctx, model.ProctorEvent{Kind: "bogus"}); err == nil {
		t.Error("server error reply was not surfaced")
	}

	if err := r.End(); err != nil {
		t.Fatal(err)
	}
	if err := r.End(); err != nil {
		t.Errorf("second End = %v", err)
	}
	if err := r.Report(ctx, model.ProctorEvent{Kind: model.ProctorCameraLost}); !errors.Is(err, ErrReporterClosed) {
		t.Errorf("Report after End = %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.path != "/ws/exam/"+testExamID+"/proctor" || rec.token != "tok" {
		t.Errorf("dialed %s token=%q", rec.path, rec.token)
	}
	if len(rec.frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(rec.frames))
	}
	ev := rec.frames[1]
	if ev.Action != ws.ActionEvent || ev.Kind != "action_blocked" || string(ev.Detail) != `{"event":"copy"}` {
		t.Errorf("event frame = %+v", ev)
	}
	if ev.At == nil || !ev.At.Equal(at) {
		t.Errorf("event time = %v", ev.At)
	}
}

func TestProctorReporterEndOvertakesBegin(t *testing.T) {
	deadline := time.Date(2026, 1, 5, 10, 15, 0, 0, time.UTC)
	arrived, hold := make(chan struct{}), make(chan struct{})
	rec := &streamRecorder{arrived: arrived, hold: hold}
	srv := rec.serve(t, deadline)
	defer srv.Close()

	r := NewProctorReporter(srv.URL, "tok")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- r.Begin(ctx, testExamID) }()

	<-arrived
	if err := r.End(); err != nil {
		t.Fatal(err)
	}
	close(hold)

	if err := <-done; !errors.Is(err, ErrReporterClosed) {
		t.Fatalf("Begin after End = %v, want ErrReporterClosed", err)
	}
	if err := r.Report(ctx, model.ProctorEvent{Kind: model.ProctorCameraLost}); !errors.Is(err, ErrReporterClosed) {
		t.Errorf("Report = %v, want ErrReporterClosed", err)
	}
	rec.mu.Lock()
	n := len(rec.frames)
	rec.mu.Unlock()
	if n != 0 {
		t.Errorf("frames = %d, want no begin frame", n)
	}

	// A later session may still use the reporter.
	if err := r.Begin(ctx, testExamID); err != nil {
		t.Fatalf("second Begin = %v", err)
	}
	r.End()
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws/exam/x/proctor?token=t"},
		{"https://api.campushire.dev/v1/", "wss://api.campushire.dev/v1/ws/exam/x/proctor?token=t"},
	}
	for _, tt := range tests {
		got, err := NewProctorReporter(tt.base, "t").streamURL("x")
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("streamURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
