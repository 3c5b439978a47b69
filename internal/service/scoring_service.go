package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campushire/skillcheck/internal/metrics"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AbandonedReason is recorded for sessions that expired without a submission.
const AbandonedReason = "Session abandoned before submission."

// AttemptStore persists attempts.
type AttemptStore interface {
	Create(ctx context.Context, a *model.SkillVerificationAttempt) error
	CreateAndVerify(ctx context.Context, a *model.SkillVerificationAttempt) (bool, error)
	ListByUser(ctx context.Context, email, skillName string, limit int) ([]model.SkillVerificationAttempt, error)
}

// ExamLookup resolves an exam with its answer key.
type ExamLookup interface {
	GetByID(ctx context.Context, examID string) (*model.SkillExam, error)
}

// SessionCloser clears the open-session marker once an attempt is recorded.
type SessionCloser interface {
	Finish(ctx context.Context, examID, userEmail string) (bool, error)
}

// ScoringService grades submissions and records attempts.
type ScoringService struct {
	users    UserStore
	exams    ExamLookup
	attempts AttemptStore
	sessions SessionCloser
	now      func() time.Time
	log      zerolog.Logger
}

// NewScoringService creates a new ScoringService. sessions may be nil.
func NewScoringService(users UserStore, exams ExamLookup, attempts AttemptStore, sessions SessionCloser, log zerolog.Logger) *ScoringService {
	return &ScoringService{
		users:    users,
		exams:    exams,
		attempts: attempts,
		sessions: sessions,
		now:      time.Now,
		log:      log.With().Str("component", "scoring_service").Logger(),
	}
}

// Submit grades a submission, records the attempt, and on a pass marks the
// candidate's matching profile skill as verified.
func (s *ScoringService) Submit(ctx context.Context, req *model.SubmitExamRequest) (*model.ExamResult, error) {
	user, err := s.users.GetByEmail(ctx, req.UserEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	exam, err := s.exams.GetByID(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}

	var outcome Outcome
	reason := ""
	if req.IsCanceled {
		reason = req.CancelReason
		if reason == "" {
			reason = DefaultCancelReason
		}
		outcome = CanceledOutcome(exam, reason)
	} else {
		outcome = Grade(exam, req.Answers)
	}

	attempt := &model.SkillVerificationAttempt{
		UserID:       user.ID,
		UserEmail:    user.Email,
		SkillName:    exam.SkillName,
		ExamID:       exam.ID,
		Answers:      normalizeAnswers(req.Answers, len(exam.Questions)),
		Score:        outcome.Score,
		Passed:       outcome.Passed,
		TimeSpent:    req.TimeSpent,
		IsCanceled:   req.IsCanceled,
		CancelReason: reason,
		AttemptedAt:  s.now().UTC(),
	}

	if err := s.record(ctx, attempt); err != nil {
		return nil, err
	}
	return outcome.Result(exam.PassingScore), nil
}

// RecordAbandoned stores a canceled attempt for a session that expired
// without a submission.
func (s *ScoringService) RecordAbandoned(ctx context.Context, examID, userEmail string) error {
	user, err := s.users.GetByEmail(ctx, userEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return err
	}

	attempt := &model.SkillVerificationAttempt{
		UserID:       user.ID,
		UserEmail:    user.Email,
		SkillName:    exam.SkillName,
		ExamID:       exam.ID,
		Answers:      normalizeAnswers(nil, len(exam.Questions)),
		IsCanceled:   true,
		CancelReason: AbandonedReason,
		AttemptedAt:  s.now().UTC(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return fmt.Errorf("%w: %v", ErrAttemptNotSaved, err)
	}

	metrics.ExamSubmissions.WithLabelValues(metrics.OutcomeAbandoned).Inc()
	s.log.Info().Str("exam_id", examID).Str("user", userEmail).Msg("Abandoned session recorded")
	return nil
}

// Attempts lists a user's recorded attempts, newest first.
func (s *ScoringService) Attempts(ctx context.Context, userEmail, skillName string, limit int) ([]model.SkillVerificationAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	attempts, err := s.attempts.ListByUser(ctx, userEmail, skillName, limit)
	if err != nil {
		return nil, err
	}
	if attempts == nil {
		attempts = []model.SkillVerificationAttempt{}
	}
	return attempts, nil
}

func (s *ScoringService) record(ctx context.Context, a *model.SkillVerificationAttempt) error {
	outcome := metrics.OutcomeFailed
	switch {
	case a.IsCanceled:
		outcome = metrics.OutcomeCanceled
		if err := s.attempts.Create(ctx, a); err != nil {
			return fmt.Errorf("%w: %v", ErrAttemptNotSaved, err)
		}
	case a.Passed:
		outcome = metrics.OutcomePassed
		updated, err := s.attempts.CreateAndVerify(ctx, a)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAttemptNotSaved, err)
		}
		if !updated {
			s.log.Info().Str("user", a.UserEmail).Str("skill", a.SkillName).Msg("Passed skill not on profile, nothing to verify")
		}
	default:
		if err := s.attempts.Create(ctx, a); err != nil {
			return fmt.Errorf("%w: %v", ErrAttemptNotSaved, err)
		}
	}
	metrics.ExamSubmissions.WithLabelValues(outcome).Inc()

	if s.sessions != nil {
		if _, err := s.sessions.Finish(ctx, a.ExamID.String(), a.UserEmail); err != nil {
			s.log.Warn().Err(err).Str("exam_id", a.ExamID.String()).Msg("Failed to clear open session")
		}
	}

	s.log.Info().
		Str("exam_id", a.ExamID.String()).
		Str("user", a.UserEmail).
		Int("score", a.Score).
		Str("outcome", outcome).
		Msg("Attempt recorded")
	return nil
}

// normalizeAnswers pads or truncates answers to one entry per question.
func normalizeAnswers(answers []int, total int) []int {
	out := make([]int, total)
	for i := range out {
		out[i] = model.Unanswered
		if i < len(answers) {
			out[i] = answers[i]
		}
	}
	return out
}
