package examsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campushire/skillcheck/internal/examclient"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/campushire/skillcheck/internal/proctor"
	"github.com/rs/zerolog"
)

// Cancellation reasons sent with canceled submissions.
const (
	ReasonTabHidden  = "Exam canceled: you left the exam tab."
	ReasonCameraLost = "Exam canceled: the camera stopped during the exam."
	ReasonClosed     = "Exam closed before submission."
)

const (
	msgMissingToken  = "Authentication token missing. Please sign in again."
	msgSubmitFailed  = "Failed to submit exam. Your result could not be saved."
	msgAnotherActive = "Another exam is already in progress for this account."
)

var (
	ErrNotReady         = errors.New("exam is not ready to start")
	ErrNotInProgress    = errors.New("exam is not in progress")
	ErrIncomplete       = errors.New("every question needs an answer before submitting")
	ErrAlreadySubmitted = errors.New("exam was already submitted")
	ErrClosed           = errors.New("session was closed")
	ErrNoQuestions      = errors.New("exam has no questions")
)

// ExamClient is the exam API as seen by a session.
type ExamClient interface {
	StartExam(ctx context.Context, skillName, userEmail string) (*model.CandidateExam, error)
	SubmitExam(ctx context.Context, req *model.SubmitExamRequest) (*model.ExamResult, error)
}

// Camera acquires the candidate's camera. Acquire may block on a permission
// prompt and must return when ctx is done.
type Camera interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is an acquired camera. Release stops every track.
type Stream interface {
	proctor.Track
	Release()
}

// Reporter forwards integrity signals for the audit trail.
type Reporter interface {
	Begin(ctx context.Context, examID string) error
	Report(ctx context.Context, ev model.ProctorEvent) error
	End() error
}

type nopReporter struct{}

func (nopReporter) Begin(context.Context, string) error              { return nil }
func (nopReporter) Report(context.Context, model.ProctorEvent) error { return nil }
func (nopReporter) End() error                                       { return nil }

// Config wires a Session to its collaborators.
type Config struct {
	SkillName string
	UserEmail string

	Client   ExamClient
	Camera   Camera
	Page     proctor.Page // nil disables page monitoring
	Policy   proctor.Policy
	Reporter Reporter
	Clock    Clock
	Registry *Registry
	Log      zerolog.Logger

	SubmitTimeout time.Duration
	// OnVerified runs after a passing result is returned by the server.
	OnVerified func(*model.ExamResult)
}

// Session is one exam attempt. All methods are safe for concurrent use by
// the UI, the countdown goroutine and page callbacks.
type Session struct {
	cfg Config
	log zerolog.Logger

	// submitted is the at-most-once submission guard. It is only swapped
	// while mu is held so the state check and the swap are one step.
	submitted atomic.Bool

	mu           sync.Mutex
	state        State
	gen          uint64
	exam         *model.CandidateExam
	index        int
	answers      []int
	remaining    int // seconds
	stream       Stream
	cameraActive bool
	registered   bool
	monitor      *proctor.Monitor
	stop         chan struct{}
	starting     bool
	submitting   bool
	errMsg       string
	result       *model.ExamResult
}

// New creates an idle Session.
func New(cfg Config) (*Session, error) {
	cfg.SkillName = strings.TrimSpace(cfg.SkillName)
	switch {
	case cfg.SkillName == "":
		return nil, errors.New("examsession: skill name is required")
	case cfg.UserEmail == "":
		return nil, errors.New("examsession: user email is required")
	case cfg.Client == nil:
		return nil, errors.New("examsession: exam client is required")
	case cfg.Camera == nil:
		return nil, errors.New("examsession: camera is required")
	}
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}

	return &Session{
		cfg: cfg,
		log: cfg.Log.With().
			Str("component", "exam_session").
			Str("skill", cfg.SkillName).
			Str("user", cfg.UserEmail).
			Logger(),
	}, nil
}

// ─── Loading ────────────────────────────────────────────────────────

// Open fetches the exam. It does nothing unless the session is Idle, so a
// second Open while one is loading or loaded makes no request.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return nil
	}
	s.state = Loading
	gen := s.gen
	s.mu.Unlock()

	exam, err := s.cfg.Client.StartExam(ctx, s.cfg.SkillName, s.cfg.UserEmail)
	if err == nil && (exam == nil || len(exam.Questions) == 0) {
		err = ErrNoQuestions
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrClosed
	}
	if err != nil {
		s.state = Canceled
		s.errMsg = loadMessage(err)
		s.log.Error().Err(err).Msg("Load exam failed")
		return err
	}

	s.exam = exam
	s.index = 0
	s.answers = make([]int, len(exam.Questions))
	for i := range s.answers {
		s.answers[i] = model.Unanswered
	}
	s.remaining = exam.TimeLimit * 60
	s.state = ReadyToStart
	s.log.Info().Str("exam_id", exam.ExamID).Int("questions", len(exam.Questions)).Msg("Exam loaded")
	return nil
}

func loadMessage(err error) string {
	var apiErr *examclient.APIError
	switch {
	case errors.Is(err, examclient.ErrMissingToken):
		return msgMissingToken
	case errors.As(err, &apiErr):
		msg := fmt.Sprintf("Failed to load exam: %d. Please try again.", apiErr.Status)
		if apiErr.Message != "" {
			msg += " (" + apiErr.Message + ")"
		}
		return msg
	case errors.Is(err, ErrNoQuestions):
		return "Failed to load exam: the exam has no questions. Please try again."
	default:
		return "Network error or invalid response: " + err.Error()
	}
}

// ─── Starting ───────────────────────────────────────────────────────

// Start acquires the camera and begins the countdown. A denied or missing
// camera cancels the session and records a canceled attempt. If ctx ends
// while the camera prompt is open the session stays ReadyToStart.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != ReadyToStart || s.starting {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.starting = true
	gen := s.gen
	s.mu.Unlock()

	stream, err := s.cfg.Camera.Acquire(ctx)

	s.mu.Lock()
	s.starting = false
	if gen != s.gen || s.state != ReadyToStart {
		s.mu.Unlock()
		if stream != nil {
			stream.Release()
		}
		return ErrClosed
	}

	if err != nil {
		if stream != nil {
			stream.Release()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.mu.Unlock()
			return ctxErr
		}
		msg := proctor.CameraMessage(err)
		s.errMsg = msg
		s.mu.Unlock()

		s.log.Warn().Err(err).Msg("Camera unavailable, canceling exam")
		s.cancelFrom(context.WithoutCancel(ctx), ReadyToStart, msg, model.ProctorCameraDenied, nil)
		return err
	}

	if s.cfg.Registry != nil {
		if err := s.cfg.Registry.acquire(s.cfg.UserEmail); err != nil {
			s.errMsg = msgAnotherActive
			s.mu.Unlock()
			stream.Release()
			return err
		}
		s.registered = true
	}

	// The proctor stream is registered while the session is still
	// ReadyToStart, so nothing can cancel it before the server knows it
	// exists.
	examID := s.exam.ExamID
	closedReq := s.requestLocked(true, ReasonClosed)
	s.starting = true
	s.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	begun := true
	if err := s.cfg.Reporter.Begin(runCtx, examID); err != nil {
		begun = false
		s.log.Warn().Err(err).Msg("Proctor stream unavailable")
	}

	s.mu.Lock()
	s.starting = false
	if gen != s.gen {
		s.mu.Unlock()
		stream.Release()
		if begun {
			s.abandonBegun(runCtx, closedReq)
		}
		return ErrClosed
	}

	s.state = InProgress
	s.errMsg = ""
	s.stream = stream
	s.cameraActive = true
	s.stop = make(chan struct{})

	sink := &sessionSink{s: s, ctx: runCtx}
	if s.cfg.Page != nil {
		s.monitor = proctor.NewMonitor(s.cfg.Page)
		s.monitor.Start(sink)
		s.monitor.WatchCamera(stream, sink)
	}

	ticker := s.cfg.Clock.NewTicker(time.Second)
	go s.run(runCtx, ticker, s.stop)
	s.mu.Unlock()

	s.log.Info().Str("exam_id", examID).Msg("Exam started")
	return nil
}

// abandonBegun records a canceled attempt for a session that was closed
// while its proctor stream was opening. The server already holds it open.
func (s *Session) abandonBegun(ctx context.Context, req *model.SubmitExamRequest) {
	s.log.Warn().Str("reason", ReasonClosed).Msg("Exam closed while starting")
	s.report(ctx, model.ProctorSessionCanceled, map[string]interface{}{"reason": ReasonClosed})
	s.endReporter()
	if _, err := s.send(ctx, req); err != nil {
		s.log.Error().Err(err).Msg("Canceled submission failed")
	}
}

func (s *Session) run(ctx context.Context, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			s.Tick(ctx)
		}
	}
}

// ─── Answering ──────────────────────────────────────────────────────

// Next moves to the following question if there is one.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editableLocked() && s.index < len(s.exam.Questions)-1 {
		s.index++
	}
}

// Previous moves to the preceding question if there is one.
func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editableLocked() && s.index > 0 {
		s.index--
	}
}

// SelectAnswer records option for question, replacing any earlier choice.
// Out-of-range indices are ignored.
func (s *Session) SelectAnswer(question, option int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editableLocked() || question < 0 || question >= len(s.answers) {
		return
	}
	if option < 0 || option >= len(s.exam.Questions[question].Options) {
		return
	}
	s.answers[question] = option
}

// CanSubmit reports whether every question has an answer.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Session) canSubmitLocked() bool {
	if len(s.answers) == 0 {
		return false
	}
	for _, a := range s.answers {
		if a == model.Unanswered {
			return false
		}
	}
	return true
}

func (s *Session) editableLocked() bool {
	return s.state == InProgress && !s.submitted.Load()
}

// ─── Submission ─────────────────────────────────────────────────────

// Submit sends the answers. Every question must be answered.
func (s *Session) Submit(ctx context.Context) (*model.ExamResult, error) {
	return s.submit(ctx, true)
}

// Tick counts down one second. When the time runs out the answers are
// submitted as they are.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	if !s.editableLocked() {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	expired := s.remaining == 0
	s.mu.Unlock()

	if expired {
		s.log.Info().Msg("Time is up, submitting")
		if _, err := s.submit(ctx, false); err != nil && !errors.Is(err, ErrAlreadySubmitted) {
			s.log.Warn().Err(err).Msg("Auto-submit failed")
		}
	}
}

func (s *Session) submit(ctx context.Context, manual bool) (*model.ExamResult, error) {
	s.mu.Lock()
	if s.state != InProgress {
		s.mu.Unlock()
		return nil, ErrNotInProgress
	}
	if manual && !s.canSubmitLocked() {
		s.mu.Unlock()
		return nil, ErrIncomplete
	}
	if !s.submitted.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	s.submitting = true
	req := s.requestLocked(false, "")
	exam := s.exam
	gen := s.gen
	release := s.teardownLocked()
	s.mu.Unlock()
	release()

	result, err := s.send(ctx, req)
	if err != nil {
		s.log.Error().Err(err).Msg("Submit exam failed")
		result = model.LocalFailureResult(exam.PassingScore, len(exam.Questions))
	}

	s.mu.Lock()
	if gen == s.gen {
		s.submitting = false
		s.result = result
		s.state = Completed
		if err != nil {
			s.errMsg = msgSubmitFailed
		}
	}
	s.mu.Unlock()

	s.report(ctx, model.ProctorSessionCompleted, map[string]interface{}{
		"score":  result.Score,
		"passed": result.Passed,
	})
	s.endReporter()

	if err != nil {
		return result, err
	}
	s.log.Info().Int("score", result.Score).Bool("passed", result.Passed).Msg("Exam submitted")
	if result.Passed && s.cfg.OnVerified != nil {
		s.cfg.OnVerified(result)
	}
	return result, nil
}

// cancelFrom moves the session from state from to Canceled and submits a
// canceled attempt. It does nothing if the session is elsewhere or a
// submission already happened.
func (s *Session) cancelFrom(ctx context.Context, from State, reason string, kind model.ProctorEventKind, detail map[string]interface{}) (*model.ExamResult, error) {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return nil, ErrNotInProgress
	}
	if !s.submitted.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	s.state = Canceled
	if s.errMsg == "" {
		s.errMsg = reason
	}
	s.submitting = true
	req := s.requestLocked(true, reason)
	exam := s.exam
	gen := s.gen
	release := s.teardownLocked()
	s.mu.Unlock()
	release()

	s.log.Warn().Str("kind", string(kind)).Str("reason", reason).Msg("Exam canceled")
	s.report(ctx, kind, detail)
	if kind != model.ProctorSessionCanceled {
		s.report(ctx, model.ProctorSessionCanceled, map[string]interface{}{"reason": reason})
	}
	s.endReporter()

	result, err := s.send(ctx, req)
	if err != nil {
		s.log.Error().Err(err).Msg("Canceled submission failed")
		result = model.LocalFailureResult(exam.PassingScore, len(exam.Questions))
	}

	s.mu.Lock()
	if gen == s.gen {
		s.submitting = false
		s.result = result
	}
	s.mu.Unlock()
	return result, err
}

func (s *Session) send(ctx context.Context, req *model.SubmitExamRequest) (*model.ExamResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()
	return s.cfg.Client.SubmitExam(ctx, req)
}

func (s *Session) requestLocked(canceled bool, reason string) *model.SubmitExamRequest {
	answers := make([]int, len(s.answers))
	copy(answers, s.answers)
	spent := s.exam.TimeLimit*60 - s.remaining
	if spent < 0 {
		spent = 0
	}
	return &model.SubmitExamRequest{
		ExamID:       s.exam.ExamID,
		Answers:      answers,
		UserEmail:    s.cfg.UserEmail,
		TimeSpent:    spent,
		IsCanceled:   canceled,
		CancelReason: reason,
	}
}

// teardownLocked detaches the timer, listeners and camera. The returned
// func releases them and must be called without mu held.
func (s *Session) teardownLocked() func() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	monitor, stream, registered := s.monitor, s.stream, s.registered
	s.monitor, s.stream, s.registered = nil, nil, false
	s.cameraActive = false

	return func() {
		if monitor != nil {
			monitor.Stop()
		}
		if stream != nil {
			stream.Release()
		}
		if registered {
			s.cfg.Registry.release(s.cfg.UserEmail)
		}
	}
}

// ─── Proctoring signals ─────────────────────────────────────────────

// HandleVisibility applies the proctoring policy to a visibility change.
// Hiding the page during the exam cancels it; showing it again changes
// nothing.
func (s *Session) HandleVisibility(ctx context.Context, v proctor.Visibility) {
	s.mu.Lock()
	running := s.state == InProgress
	s.mu.Unlock()
	if !running || s.cfg.Policy.Visibility(v) != proctor.Cancel {
		return
	}
	s.cancelFrom(ctx, InProgress, ReasonTabHidden, model.ProctorVisibilityHidden, nil)
}

func (s *Session) handleCamera(ctx context.Context, active bool) {
	s.mu.Lock()
	if s.state != InProgress {
		s.mu.Unlock()
		return
	}
	s.cameraActive = active
	s.mu.Unlock()

	if active {
		s.report(ctx, model.ProctorCameraRestored, nil)
		return
	}
	if s.cfg.Policy.CameraLost() == proctor.Cancel {
		s.cancelFrom(ctx, InProgress, ReasonCameraLost, model.ProctorCameraLost, nil)
		return
	}
	s.report(ctx, model.ProctorCameraLost, nil)
}

func (s *Session) handleBlocked(ctx context.Context, ev proctor.PageEvent) {
	s.mu.Lock()
	running := s.state == InProgress
	s.mu.Unlock()
	if running {
		s.report(ctx, model.ProctorActionBlocked, map[string]interface{}{"event": string(ev)})
	}
}

type sessionSink struct {
	s   *Session
	ctx context.Context
}

func (k *sessionSink) VisibilityChanged(v proctor.Visibility) { k.s.HandleVisibility(k.ctx, v) }
func (k *sessionSink) CameraChanged(active bool)              { k.s.handleCamera(k.ctx, active) }
func (k *sessionSink) ActionBlocked(ev proctor.PageEvent)     { k.s.handleBlocked(k.ctx, ev) }

func (s *Session) report(ctx context.Context, kind model.ProctorEventKind, detail map[string]interface{}) {
	s.mu.Lock()
	var examID string
	if s.exam != nil {
		examID = s.exam.ExamID
	}
	s.mu.Unlock()

	ev := model.ProctorEvent{
		ExamID:     examID,
		UserEmail:  s.cfg.UserEmail,
		Kind:       kind,
		RecordedAt: s.cfg.Clock.Now(),
	}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err == nil {
			ev.Detail = raw
		}
	}
	if err := s.cfg.Reporter.Report(ctx, ev); err != nil {
		s.log.Debug().Err(err).Str("kind", string(kind)).Msg("Proctor event not delivered")
	}
}

func (s *Session) endReporter() {
	if err := s.cfg.Reporter.End(); err != nil {
		s.log.Debug().Err(err).Msg("Close proctor stream")
	}
}

// ─── Closing ────────────────────────────────────────────────────────

// Close ends the session and returns it to Idle. Closing a running exam
// counts as abandoning it and records a canceled attempt first.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	abandon := s.state == InProgress && !s.submitted.Load()
	s.mu.Unlock()
	if abandon {
		s.cancelFrom(ctx, InProgress, ReasonClosed, model.ProctorSessionCanceled, map[string]interface{}{"reason": ReasonClosed})
	}

	s.mu.Lock()
	s.gen++
	release := s.teardownLocked()
	s.state = Idle
	s.exam = nil
	s.index = 0
	s.answers = nil
	s.remaining = 0
	s.starting = false
	s.submitting = false
	s.errMsg = ""
	s.result = nil
	s.submitted.Store(false)
	s.mu.Unlock()

	release()
	s.endReporter()
}

// ─── Rendering ──────────────────────────────────────────────────────

// Snapshot is a read-only view of a Session for rendering.
type Snapshot struct {
	State        State
	SkillName    string
	ExamID       string
	Question     *model.CandidateQuestion
	Index        int
	Total        int
	PassingScore int
	Answers      []int
	Remaining    int
	CameraActive bool
	Submitting   bool
	CanSubmit    bool
	Error        string
	Result       *model.ExamResult
}

// Clock renders the remaining time as m:ss.
func (v Snapshot) Clock() string {
	return fmt.Sprintf("%d:%02d", v.Remaining/60, v.Remaining%60)
}

// Answered counts the questions with a selected option.
func (v Snapshot) Answered() int {
	n := 0
	for _, a := range v.Answers {
		if a != model.Unanswered {
			n++
		}
	}
	return n
}

// Snapshot returns the current view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := Snapshot{
		State:        s.state,
		SkillName:    s.cfg.SkillName,
		Index:        s.index,
		Remaining:    s.remaining,
		CameraActive: s.cameraActive,
		Submitting:   s.submitting,
		CanSubmit:    s.canSubmitLocked(),
		Error:        s.errMsg,
		Result:       s.result,
	}
	if s.exam != nil {
		v.ExamID = s.exam.ExamID
		v.Total = len(s.exam.Questions)
		v.PassingScore = s.exam.PassingScore
		if s.index < v.Total {
			q := s.exam.Questions[s.index]
			v.Question = &q
		}
	}
	v.Answers = make([]int, len(s.answers))
	copy(v.Answers, s.answers)
	return v
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
