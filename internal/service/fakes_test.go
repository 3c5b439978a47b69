package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

type fakeUsers struct {
	users map[string]*model.User
}

func newFakeUsers(emails ...string) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*model.User)}
	for i, e := range emails {
		f.users[strings.ToLower(e)] = &model.User{ID: int64(i + 1), Email: e, UserType: model.UserTypeJobSeeker}
	}
	return f
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := f.users[strings.ToLower(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

// fakeExams mimics the unique skill_name constraint of skill_exams.
type fakeExams struct {
	mu      sync.Mutex
	bySkill map[string]*model.SkillExam
	creates int
}

func newFakeExams(exams ...*model.SkillExam) *fakeExams {
	f := &fakeExams{bySkill: make(map[string]*model.SkillExam)}
	for _, e := range exams {
		f.bySkill[e.SkillName] = e
	}
	return f
}

func (f *fakeExams) GetByID(_ context.Context, id uuid.UUID) (*model.SkillExam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.bySkill {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeExams) GetBySkillName(_ context.Context, skillName string) (*model.SkillExam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.bySkill[skillName]; ok {
		return e, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeExams) Create(_ context.Context, e *model.SkillExam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if existing, ok := f.bySkill[e.SkillName]; ok {
		*e = *existing
		return nil
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	stored := *e
	f.bySkill[e.SkillName] = &stored
	return nil
}

func (f *fakeExams) List(context.Context) ([]model.SkillExam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.SkillExam, 0, len(f.bySkill))
	for _, e := range f.bySkill {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeExams) put(e *model.SkillExam) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bySkill[e.SkillName] = e
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, skillName string, count int) ([]model.ExamQuestion, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return sampleQuestions(skillName, count), nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func sampleQuestions(skillName string, count int) []model.ExamQuestion {
	qs := make([]model.ExamQuestion, count)
	for i := range qs {
		qs[i] = model.ExamQuestion{
			Question:      fmt.Sprintf("%s question %d", skillName, i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: i % 4,
			Explanation:   fmt.Sprintf("explanation %d", i+1),
		}
	}
	return qs
}

// reactExam has the answer key [0,1,2,3,0].
func reactExam() *model.SkillExam {
	return &model.SkillExam{
		ID:           uuid.MustParse("7b0f9a52-4f0e-4e8c-9a43-0d5f3c6b2a11"),
		SkillName:    "React",
		Category:     model.CategoryFrontend,
		PassingScore: 60,
		TimeLimit:    15,
		Questions: []model.ExamQuestion{
			{Question: "Q1", Options: []string{"a1", "b1", "c1", "d1"}, CorrectAnswer: 0, Explanation: "e1"},
			{Question: "Q2", Options: []string{"a2", "b2", "c2", "d2"}, CorrectAnswer: 1, Explanation: "e2"},
			{Question: "Q3", Options: []string{"a3", "b3", "c3", "d3"}, CorrectAnswer: 2, Explanation: "e3"},
			{Question: "Q4", Options: []string{"a4", "b4", "c4", "d4"}, CorrectAnswer: 3, Explanation: "e4"},
			{Question: "Q5", Options: []string{"a5", "b5", "c5", "d5"}, CorrectAnswer: 0, Explanation: "e5"},
		},
	}
}

// fakeAttempts stores attempts and emulates the profile skill update.
type fakeAttempts struct {
	mu       sync.Mutex
	attempts []model.SkillVerificationAttempt
	profile  map[string]*model.JobSeekerSkill // key: email|skill
	err      error
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{profile: make(map[string]*model.JobSeekerSkill)}
}

func (f *fakeAttempts) addSkill(email, skill string) {
	f.profile[email+"|"+skill] = &model.JobSeekerSkill{SkillName: skill}
}

func (f *fakeAttempts) skill(email, skill string) *model.JobSeekerSkill {
	return f.profile[email+"|"+skill]
}

func (f *fakeAttempts) Create(_ context.Context, a *model.SkillVerificationAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	a.ID = int64(len(f.attempts) + 1)
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttempts) CreateAndVerify(ctx context.Context, a *model.SkillVerificationAttempt) (bool, error) {
	if err := f.Create(ctx, a); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.profile[a.UserEmail+"|"+a.SkillName]
	if !ok {
		return false, nil
	}
	score := a.Score
	at := a.AttemptedAt
	s.IsVerified = true
	s.VerificationScore = &score
	s.VerifiedAt = &at
	return true, nil
}

func (f *fakeAttempts) ListByUser(_ context.Context, email, skillName string, limit int) ([]model.SkillVerificationAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SkillVerificationAttempt
	for i := len(f.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		a := f.attempts[i]
		if a.UserEmail == email && (skillName == "" || a.SkillName == skillName) {
			out = append(out, a)
		}
	}
	return out, nil
}

type examLookupFunc func(ctx context.Context, examID string) (*model.SkillExam, error)

func (f examLookupFunc) GetByID(ctx context.Context, examID string) (*model.SkillExam, error) {
	return f(ctx, examID)
}

func staticExams(exams ...*model.SkillExam) ExamLookup {
	return examLookupFunc(func(_ context.Context, examID string) (*model.SkillExam, error) {
		for _, e := range exams {
			if e.ID.String() == examID {
				return e, nil
			}
		}
		return nil, ErrExamNotFound
	})
}
