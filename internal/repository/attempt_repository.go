package repository

import (
	"context"
	"fmt"

	"github.com/campushire/skillcheck/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRepository persists skill verification attempts.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts an attempt record. Attempts are never updated.
func (r *AttemptRepository) Create(ctx context.Context, a *model.SkillVerificationAttempt) error {
	return insertAttempt(ctx, r.pool, a)
}

// CreateAndVerify inserts a passing attempt and flags the matching profile
// skill in one transaction. It reports whether a profile entry was updated.
func (r *AttemptRepository) CreateAndVerify(ctx context.Context, a *model.SkillVerificationAttempt) (bool, error) {
	var updated bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertAttempt(ctx, tx, a); err != nil {
			return err
		}
		var err error
		updated, err = markSkillVerified(ctx, tx, a.UserEmail, a.SkillName, a.Score, a.AttemptedAt)
		if err != nil {
			return fmt.Errorf("mark skill verified: %w", err)
		}
		return nil
	})
	return updated, err
}

// ListByUser returns a user's attempts, newest first. An empty skillName lists all skills.
func (r *AttemptRepository) ListByUser(ctx context.Context, email, skillName string, limit int) ([]model.SkillVerificationAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, user_email, skill_name, exam_id, answers, score, passed,
		        time_spent, is_canceled, COALESCE(cancel_reason, ''), attempted_at
		 FROM skill_verification_attempts
		 WHERE user_email = $1 AND ($2 = '' OR skill_name = $2)
		 ORDER BY attempted_at DESC
		 LIMIT $3`, email, skillName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.SkillVerificationAttempt
	for rows.Next() {
		var a model.SkillVerificationAttempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.UserEmail, &a.SkillName, &a.ExamID, &a.Answers,
			&a.Score, &a.Passed, &a.TimeSpent, &a.IsCanceled, &a.CancelReason, &a.AttemptedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func insertAttempt(ctx context.Context, q querier, a *model.SkillVerificationAttempt) error {
	var reason *string
	if a.CancelReason != "" {
		reason = &a.CancelReason
	}
	err := q.QueryRow(ctx,
		`INSERT INTO skill_verification_attempts
		    (user_id, user_email, skill_name, exam_id, answers, score, passed, time_spent, is_canceled, cancel_reason, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		a.UserID, a.UserEmail, a.SkillName, a.ExamID, a.Answers, a.Score, a.Passed,
		a.TimeSpent, a.IsCanceled, reason, a.AttemptedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}
