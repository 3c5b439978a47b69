package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/campushire/skillcheck/internal/config"
	"github.com/redis/go-redis/v9"
)

// OpenSession is an exam a candidate began but has not submitted.
type OpenSession struct {
	ExamID    string
	UserEmail string
	Deadline  time.Time
	member    string
}

// SessionRegistry tracks in-progress sessions in a Redis sorted set scored
// by deadline, so sessions that vanish without submitting can be recorded.
type SessionRegistry struct {
	rdb   *redis.Client
	grace time.Duration
}

// NewSessionRegistry creates a new SessionRegistry. grace is added to each
// session's time limit before it counts as abandoned.
func NewSessionRegistry(rdb *redis.Client, grace time.Duration) *SessionRegistry {
	return &SessionRegistry{rdb: rdb, grace: grace}
}

// Begin registers a session. Registering the same session again moves its deadline.
func (r *SessionRegistry) Begin(ctx context.Context, examID, userEmail string, timeLimit time.Duration, now time.Time) (time.Time, error) {
	deadline := now.Add(timeLimit + r.grace)
	err := r.rdb.ZAdd(ctx, config.CacheKey.OpenSessionsKey(), redis.Z{
		Score:  float64(deadline.Unix()),
		Member: config.CacheKey.OpenSessionMember(examID, userEmail),
	}).Err()
	if err != nil {
		return time.Time{}, fmt.Errorf("register session: %w", err)
	}
	return deadline, nil
}

// Finish removes a session. It reports whether the session was still open.
func (r *SessionRegistry) Finish(ctx context.Context, examID, userEmail string) (bool, error) {
	n, err := r.rdb.ZRem(ctx, config.CacheKey.OpenSessionsKey(), config.CacheKey.OpenSessionMember(examID, userEmail)).Result()
	if err != nil {
		return false, fmt.Errorf("finish session: %w", err)
	}
	return n > 0, nil
}

// Expired lists up to limit sessions whose deadline is at or before now.
func (r *SessionRegistry) Expired(ctx context.Context, now time.Time, limit int64) ([]OpenSession, error) {
	zs, err := r.rdb.ZRangeByScoreWithScores(ctx, config.CacheKey.OpenSessionsKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}

	sessions := make([]OpenSession, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		examID, email, ok := config.CacheKey.ParseOpenSessionMember(member)
		if !ok {
			r.rdb.ZRem(ctx, config.CacheKey.OpenSessionsKey(), member)
			continue
		}
		sessions = append(sessions, OpenSession{
			ExamID:    examID,
			UserEmail: email,
			Deadline:  time.Unix(int64(z.Score), 0),
			member:    member,
		})
	}
	return sessions, nil
}

// Claim removes an expired session. Only the caller that gets true may record it.
func (r *SessionRegistry) Claim(ctx context.Context, s OpenSession) (bool, error) {
	n, err := r.rdb.ZRem(ctx, config.CacheKey.OpenSessionsKey(), s.member).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Restore puts a claimed session back so a later sweep can retry it.
func (r *SessionRegistry) Restore(ctx context.Context, s OpenSession) error {
	return r.rdb.ZAdd(ctx, config.CacheKey.OpenSessionsKey(), redis.Z{
		Score:  float64(s.Deadline.Unix()),
		Member: s.member,
	}).Err()
}
