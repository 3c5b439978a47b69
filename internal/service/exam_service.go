package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushire/skillcheck/internal/config"
	"github.com/campushire/skillcheck/internal/metrics"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/campushire/skillcheck/internal/questiongen"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// UserStore looks up platform users.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// ExamStore persists skill exams.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.SkillExam, error)
	GetBySkillName(ctx context.Context, skillName string) (*model.SkillExam, error)
	Create(ctx context.Context, e *model.SkillExam) error
	List(ctx context.Context) ([]model.SkillExam, error)
}

// ExamDefaults are applied to newly generated exams.
type ExamDefaults struct {
	QuestionCount   int
	PassingScore    int
	TimeLimit       int
	CacheTTL        time.Duration
	GenerateTimeout time.Duration
}

// ExamDefaultsFromConfig extracts exam defaults from the app config.
func ExamDefaultsFromConfig(cfg *config.Config) ExamDefaults {
	return ExamDefaults{
		QuestionCount:   cfg.ExamQuestionCount,
		PassingScore:    cfg.ExamPassingScore,
		TimeLimit:       cfg.ExamTimeLimit,
		CacheTTL:        cfg.ExamCacheTTL,
		GenerateTimeout: cfg.GenerateTimeout,
	}
}

const lockPollInterval = 250 * time.Millisecond

// ExamService finds or generates the exam for a skill.
type ExamService struct {
	users    UserStore
	exams    ExamStore
	gen      questiongen.Generator
	rdb      *redis.Client
	defaults ExamDefaults
	group    singleflight.Group
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	users UserStore,
	exams ExamStore,
	gen questiongen.Generator,
	rdb *redis.Client,
	defaults ExamDefaults,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		users:    users,
		exams:    exams,
		gen:      gen,
		rdb:      rdb,
		defaults: defaults,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// StartExam returns the candidate view of the exam for skillName, generating
// and storing one on first request.
func (s *ExamService) StartExam(ctx context.Context, skillName, userEmail string) (*model.CandidateExam, error) {
	skillName = strings.TrimSpace(skillName)

	if _, err := s.users.GetByEmail(ctx, userEmail); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	exam, err := s.Resolve(ctx, skillName)
	if err != nil {
		return nil, err
	}
	return exam.ForCandidate(), nil
}

// Resolve returns the stored exam for skillName, generating it if none exists.
// Concurrent callers for the same skill share one generation.
func (s *ExamService) Resolve(ctx context.Context, skillName string) (*model.SkillExam, error) {
	if exam := s.cached(ctx, config.CacheKey.SkillExamKey(skillName)); exam != nil {
		return exam, nil
	}

	exam, err := s.exams.GetBySkillName(ctx, skillName)
	if err == nil {
		s.cache(ctx, exam)
		return exam, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup exam: %w", err)
	}

	// Detached so one caller hanging up does not fail the others sharing the call.
	genCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(skillName, func() (interface{}, error) {
		return s.generateOnce(genCtx, skillName)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.SkillExam), nil
}

// GetByID returns the full exam including its answer key.
func (s *ExamService) GetByID(ctx context.Context, examID string) (*model.SkillExam, error) {
	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, ErrInvalidExamID
	}

	if exam := s.cached(ctx, config.CacheKey.ExamByIDKey(id.String())); exam != nil {
		return exam, nil
	}

	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("lookup exam: %w", err)
	}
	s.cache(ctx, exam)
	return exam, nil
}

// generateOnce holds the cross-instance generation lock while generating.
// Instances that lose the lock wait for the winner's row to appear.
func (s *ExamService) generateOnce(ctx context.Context, skillName string) (*model.SkillExam, error) {
	ctx, cancel := context.WithTimeout(ctx, s.defaults.GenerateTimeout)
	defer cancel()

	lockKey := config.CacheKey.ExamGenerationLockKey(skillName)
	acquired, err := s.rdb.SetNX(ctx, lockKey, uuid.NewString(), s.defaults.GenerateTimeout).Result()
	if err != nil {
		// Redis unavailable: generate anyway, the unique constraint settles races.
		s.log.Warn().Err(err).Str("skill", skillName).Msg("Generation lock unavailable")
		acquired = true
	}
	if !acquired {
		return s.awaitGenerated(ctx, skillName)
	}
	defer s.rdb.Del(context.WithoutCancel(ctx), lockKey)

	exam, err := s.generate(ctx, skillName)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, exam)
	return exam, nil
}

func (s *ExamService) generate(ctx context.Context, skillName string) (*model.SkillExam, error) {
	start := time.Now()
	questions, err := s.gen.Generate(ctx, skillName, s.defaults.QuestionCount)
	metrics.ExamGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExamGenerations.WithLabelValues(s.gen.Name(), "error").Inc()
		s.log.Error().Err(err).Str("skill", skillName).Str("provider", s.gen.Name()).Msg("Question generation failed")
		return nil, fmt.Errorf("%w: %v", ErrExamGeneration, err)
	}
	metrics.ExamGenerations.WithLabelValues(s.gen.Name(), "ok").Inc()

	exam := &model.SkillExam{
		SkillName:    skillName,
		Category:     questiongen.Categorize(skillName),
		Questions:    questions,
		PassingScore: s.defaults.PassingScore,
		TimeLimit:    s.defaults.TimeLimit,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("store exam: %w", err)
	}

	s.log.Info().
		Str("skill", skillName).
		Str("exam_id", exam.ID.String()).
		Dur("took", time.Since(start)).
		Msg("Exam generated")
	return exam, nil
}

func (s *ExamService) awaitGenerated(ctx context.Context, skillName string) (*model.SkillExam, error) {
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: timed out waiting for generation", ErrExamGeneration)
		case <-ticker.C:
		}

		exam, err := s.exams.GetBySkillName(ctx, skillName)
		if err == nil {
			s.cache(ctx, exam)
			return exam, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lookup exam: %w", err)
		}

		// The other generator gave up; take over.
		held, err := s.rdb.Exists(ctx, config.CacheKey.ExamGenerationLockKey(skillName)).Result()
		if err == nil && held == 0 {
			return s.generateOnce(ctx, skillName)
		}
	}
}

// PrewarmCaches loads every stored exam into Redis so the first candidates
// after a deploy do not all fall through to PostgreSQL.
func (s *ExamService) PrewarmCaches(ctx context.Context) (int, error) {
	exams, err := s.exams.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list exams: %w", err)
	}
	for i := range exams {
		s.cache(ctx, &exams[i])
	}
	s.log.Info().Int("exams", len(exams)).Msg("Exam caches prewarmed")
	return len(exams), nil
}

func (s *ExamService) cached(ctx context.Context, key string) *model.SkillExam {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("key", key).Msg("Exam cache read failed")
		}
		return nil
	}

	var exam model.SkillExam
	if err := json.Unmarshal(raw, &exam); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt exam cache entry")
		s.rdb.Del(ctx, key)
		return nil
	}
	return &exam
}

func (s *ExamService) cache(ctx context.Context, exam *model.SkillExam) {
	raw, err := json.Marshal(exam)
	if err != nil {
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.SkillExamKey(exam.SkillName), raw, s.defaults.CacheTTL)
	pipe.Set(ctx, config.CacheKey.ExamByIDKey(exam.ID.String()), raw, s.defaults.CacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("skill", exam.SkillName).Msg("Exam cache write failed")
	}
}
