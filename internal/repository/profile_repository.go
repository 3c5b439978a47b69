package repository

import (
	"context"
	"time"

	"github.com/campushire/skillcheck/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProfileRepository reads and updates the skill list of job seeker profiles.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// ListSkills returns the skill entries of the profile owned by email.
func (r *ProfileRepository) ListSkills(ctx context.Context, email string) ([]model.JobSeekerSkill, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.skill_name, s.category, s.proficiency_level, s.years_of_experience,
		        s.is_primary, s.is_verified, s.verification_score, s.verified_at
		 FROM job_seeker_skills s
		 JOIN job_seekers js ON js.id = s.job_seeker_id
		 WHERE js.email = $1
		 ORDER BY s.is_primary DESC, s.skill_name ASC`, email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []model.JobSeekerSkill
	for rows.Next() {
		var s model.JobSeekerSkill
		if err := rows.Scan(&s.SkillName, &s.Category, &s.ProficiencyLevel, &s.YearsOfExperience,
			&s.IsPrimary, &s.IsVerified, &s.VerificationScore, &s.VerifiedAt); err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// markSkillVerified flags the profile skill whose name equals skillName exactly.
// It reports whether an entry was updated; a missing entry is not an error.
func markSkillVerified(ctx context.Context, q querier, email, skillName string, score int, at time.Time) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE job_seeker_skills AS s
		 SET is_verified = TRUE,
		     verification_score = $3,
		     verified_at = $4
		 FROM job_seekers js
		 WHERE js.id = s.job_seeker_id
		   AND js.email = $1
		   AND s.skill_name = $2`,
		email, skillName, score, at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
