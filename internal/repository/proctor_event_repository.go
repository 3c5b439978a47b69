package repository

import (
	"context"
	"fmt"

	"github.com/campushire/skillcheck/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProctorEventRepository stores integrity signals.
type ProctorEventRepository struct {
	pool *pgxpool.Pool
}

// NewProctorEventRepository creates a new ProctorEventRepository.
func NewProctorEventRepository(pool *pgxpool.Pool) *ProctorEventRepository {
	return &ProctorEventRepository{pool: pool}
}

// CopyEvents bulk-inserts events with COPY. Any invalid event fails the whole batch.
func (r *ProctorEventRepository) CopyEvents(ctx context.Context, events []*model.ProctorEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		examID, err := uuid.Parse(e.ExamID)
		if err != nil {
			return fmt.Errorf("event exam id %q: %w", e.ExamID, err)
		}
		rows = append(rows, []interface{}{examID, e.UserEmail, string(e.Kind), detailOrEmpty(e), e.RecordedAt})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"exam_proctor_events"},
		[]string{"exam_id", "user_email", "kind", "detail", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert stores a single event.
func (r *ProctorEventRepository) Insert(ctx context.Context, e *model.ProctorEvent) error {
	examID, err := uuid.Parse(e.ExamID)
	if err != nil {
		return fmt.Errorf("event exam id %q: %w", e.ExamID, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_proctor_events (exam_id, user_email, kind, detail, recorded_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		examID, e.UserEmail, string(e.Kind), detailOrEmpty(e), e.RecordedAt,
	)
	return err
}

// ListByExamUser returns the events of one user's sessions on an exam, oldest first.
func (r *ProctorEventRepository) ListByExamUser(ctx context.Context, examID uuid.UUID, email string) ([]model.ProctorEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id::text, user_email, kind, detail, recorded_at
		 FROM exam_proctor_events
		 WHERE exam_id = $1 AND user_email = $2
		 ORDER BY recorded_at`, examID, email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ProctorEvent
	for rows.Next() {
		var (
			e    model.ProctorEvent
			kind string
		)
		if err := rows.Scan(&e.ExamID, &e.UserEmail, &kind, &e.Detail, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Kind = model.ProctorEventKind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

func detailOrEmpty(e *model.ProctorEvent) string {
	if len(e.Detail) == 0 {
		return "{}"
	}
	return string(e.Detail)
}
