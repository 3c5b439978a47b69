package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campushire/skillcheck/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const skillExamColumns = `id, skill_name, category, questions, passing_score, time_limit, created_at, updated_at`

// SkillExamRepository handles skill exam data access.
type SkillExamRepository struct {
	pool *pgxpool.Pool
}

// NewSkillExamRepository creates a new SkillExamRepository.
func NewSkillExamRepository(pool *pgxpool.Pool) *SkillExamRepository {
	return &SkillExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *SkillExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SkillExam, error) {
	return scanSkillExam(r.pool.QueryRow(ctx,
		`SELECT `+skillExamColumns+` FROM skill_exams WHERE id = $1`, id))
}

// GetBySkillName retrieves the exam for a skill name (exact match).
func (r *SkillExamRepository) GetBySkillName(ctx context.Context, skillName string) (*model.SkillExam, error) {
	return scanSkillExam(r.pool.QueryRow(ctx,
		`SELECT `+skillExamColumns+` FROM skill_exams WHERE skill_name = $1`, skillName))
}

// Create inserts a new exam. If another writer created the exam for the same
// skill first, the existing row is loaded into e instead, so callers always
// end up with the single exam of that skill.
func (r *SkillExamRepository) Create(ctx context.Context, e *model.SkillExam) error {
	questions, err := json.Marshal(e.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO skill_exams (skill_name, category, questions, passing_score, time_limit)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (skill_name) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		e.SkillName, e.Category, questions, e.PassingScore, e.TimeLimit,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := r.GetBySkillName(ctx, e.SkillName)
		if getErr != nil {
			return fmt.Errorf("concurrent create detected, but fetch failed: %w", getErr)
		}
		*e = *existing
		return nil
	}
	return err
}

// List returns every stored exam, newest first.
func (r *SkillExamRepository) List(ctx context.Context) ([]model.SkillExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+skillExamColumns+` FROM skill_exams ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.SkillExam
	for rows.Next() {
		e, err := scanSkillExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

func scanSkillExam(row pgx.Row) (*model.SkillExam, error) {
	e := &model.SkillExam{}
	var raw []byte
	if err := row.Scan(&e.ID, &e.SkillName, &e.Category, &raw, &e.PassingScore, &e.TimeLimit, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &e.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of exam %s: %w", e.ID, err)
	}
	return e, nil
}
