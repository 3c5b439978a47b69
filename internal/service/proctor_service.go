package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campushire/skillcheck/internal/config"
	"github.com/campushire/skillcheck/internal/metrics"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ProctorService receives integrity signals from live sessions. Events are
// queued in Redis and written to PostgreSQL by the proctor event worker.
type ProctorService struct {
	rdb      *redis.Client
	exams    ExamLookup
	sessions *SessionRegistry
	now      func() time.Time
	log      zerolog.Logger
}

// NewProctorService creates a new ProctorService.
func NewProctorService(rdb *redis.Client, exams ExamLookup, sessions *SessionRegistry, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		rdb:      rdb,
		exams:    exams,
		sessions: sessions,
		now:      time.Now,
		log:      log.With().Str("component", "proctor_service").Logger(),
	}
}

// Begin marks a session as in progress and returns the deadline after
// which it counts as abandoned.
func (s *ProctorService) Begin(ctx context.Context, examID, userEmail string) (time.Time, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now()
	deadline, err := s.sessions.Begin(ctx, exam.ID.String(), userEmail, time.Duration(exam.TimeLimit)*time.Minute, now)
	if err != nil {
		return time.Time{}, err
	}

	if err := s.Record(ctx, &model.ProctorEvent{
		ExamID:     exam.ID.String(),
		UserEmail:  userEmail,
		Kind:       model.ProctorSessionStarted,
		RecordedAt: now,
	}); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID).Msg("Failed to queue session start")
	}
	return deadline, nil
}

// Record queues one event for persistence.
func (s *ProctorService) Record(ctx context.Context, ev *model.ProctorEvent) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, ev.Kind)
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = s.now()
	}
	if len(ev.Detail) > 0 && !json.Valid(ev.Detail) {
		ev.Detail = nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistProctorEventsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue proctor event: %w", err)
	}

	metrics.ProctorEvents.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}
