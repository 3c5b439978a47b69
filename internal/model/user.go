package model

import "time"

// UserType distinguishes marketplace roles.
type UserType string

const (
	UserTypeJobSeeker UserType = "job_seeker"
	UserTypeRecruiter UserType = "recruiter"
	UserTypeBoth      UserType = "both"
)

// User is an identity known to the marketplace. Authentication happens at the
// external identity provider; this row only links an email to a profile.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	PhotoURL    *string   `json:"photoUrl,omitempty"`
	FirebaseUID *string   `json:"firebaseUid,omitempty"`
	UserType    UserType  `json:"userType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastLogin   time.Time `json:"lastLogin"`
}

// ProficiencyLevel is the self-reported level on a profile skill.
type ProficiencyLevel string

const (
	ProficiencyBeginner     ProficiencyLevel = "beginner"
	ProficiencyIntermediate ProficiencyLevel = "intermediate"
	ProficiencyAdvanced     ProficiencyLevel = "advanced"
	ProficiencyExpert       ProficiencyLevel = "expert"
)

// JobSeekerSkill is one entry of a candidate's skill list.
// IsVerified implies VerificationScore is set and at least the passing score
// of the exam that produced it.
type JobSeekerSkill struct {
	SkillName         string           `json:"skillName"`
	Category          string           `json:"category"`
	ProficiencyLevel  ProficiencyLevel `json:"proficiencyLevel"`
	YearsOfExperience int              `json:"yearsOfExperience"`
	IsPrimary         bool             `json:"isPrimary"`
	IsVerified        bool             `json:"isVerified"`
	VerificationScore *int             `json:"verificationScore,omitempty"`
	VerifiedAt        *time.Time       `json:"verifiedAt,omitempty"`
}
