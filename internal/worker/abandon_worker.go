package worker

import (
	"context"
	"errors"
	"time"

	"github.com/campushire/skillcheck/internal/service"
	"github.com/rs/zerolog"
)

const sweepBatch = 100

// OpenSessions lists and claims sessions that outlived their deadline.
type OpenSessions interface {
	Expired(ctx context.Context, now time.Time, limit int64) ([]service.OpenSession, error)
	Claim(ctx context.Context, s service.OpenSession) (bool, error)
	Restore(ctx context.Context, s service.OpenSession) error
}

// AbandonRecorder persists the canceled attempt of an abandoned session.
type AbandonRecorder interface {
	RecordAbandoned(ctx context.Context, examID, userEmail string) error
}

// AbandonWorker records sessions that began but never submitted, such as
// a closed tab or a crashed browser.
type AbandonWorker struct {
	sessions OpenSessions
	recorder AbandonRecorder
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewAbandonWorker(sessions OpenSessions, recorder AbandonRecorder, interval time.Duration, log zerolog.Logger) *AbandonWorker {
	return &AbandonWorker{
		sessions: sessions,
		recorder: recorder,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "abandon_worker").Logger(),
	}
}

func (w *AbandonWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("AbandonWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("AbandonWorker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep records every expired session once. It returns how many were recorded.
func (w *AbandonWorker) Sweep(ctx context.Context) int {
	expired, err := w.sessions.Expired(ctx, w.now(), sweepBatch)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("List expired sessions failed")
		}
		return 0
	}

	recorded := 0
	for _, s := range expired {
		// Another instance, or a late submission, may have closed it first.
		claimed, err := w.sessions.Claim(ctx, s)
		if err != nil {
			w.log.Error().Err(err).Str("exam_id", s.ExamID).Msg("Claim session failed")
			continue
		}
		if !claimed {
			continue
		}

		if err := w.recorder.RecordAbandoned(ctx, s.ExamID, s.UserEmail); err != nil {
			if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrExamNotFound) || errors.Is(err, service.ErrInvalidExamID) {
				w.log.Warn().Err(err).Str("exam_id", s.ExamID).Str("user", s.UserEmail).Msg("Dropping abandoned session")
				continue
			}
			w.log.Error().Err(err).Str("exam_id", s.ExamID).Str("user", s.UserEmail).Msg("Record abandoned session failed, restoring")
			if err := w.sessions.Restore(ctx, s); err != nil {
				w.log.Error().Err(err).Str("exam_id", s.ExamID).Msg("Restore session failed")
			}
			continue
		}
		recorded++
	}
	return recorded
}
