package config

import (
	"fmt"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SkillExamKey returns the cache key for the stored exam of a skill.
// Skill names are case-sensitive, matching the unique column in skill_exams.
func (r *CacheKeyStruct) SkillExamKey(skillName string) string {
	return fmt.Sprintf("skill_exam:%s", strings.TrimSpace(skillName))
}

// ExamByIDKey returns the cache key for an exam looked up by its ID.
func (r *CacheKeyStruct) ExamByIDKey(examID string) string {
	return fmt.Sprintf("skill_exam:id:%s", examID)
}

// ExamGenerationLockKey returns the key guarding concurrent generation for a skill.
func (r *CacheKeyStruct) ExamGenerationLockKey(skillName string) string {
	return fmt.Sprintf("skill_exam:%s:generating", strings.TrimSpace(skillName))
}

// OpenSessionsKey returns the sorted set of in-progress sessions scored by deadline.
func (r *CacheKeyStruct) OpenSessionsKey() string {
	return "exam_sessions:open"
}

// OpenSessionMember returns the sorted set member for a user's session on an
// exam. Emails are folded to lower case.
func (r *CacheKeyStruct) OpenSessionMember(examID, userEmail string) string {
	return fmt.Sprintf("%s|%s", examID, strings.ToLower(strings.TrimSpace(userEmail)))
}

// ParseOpenSessionMember splits a member produced by OpenSessionMember.
func (r *CacheKeyStruct) ParseOpenSessionMember(member string) (examID, userEmail string, ok bool) {
	examID, userEmail, ok = strings.Cut(member, "|")
	return examID, userEmail, ok && examID != "" && userEmail != ""
}

var CacheKey = NewCacheKeyStruct()
