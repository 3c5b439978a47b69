package handler

import (
	"context"
	"net/http"

	"github.com/campushire/skillcheck/internal/middleware"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/campushire/skillcheck/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SkillLister reads the skill list of a profile.
type SkillLister interface {
	ListSkills(ctx context.Context, email string) ([]model.JobSeekerSkill, error)
}

// ProfileHandler exposes the caller's profile skills with their verification state.
type ProfileHandler struct {
	profiles SkillLister
	log      zerolog.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles SkillLister, log zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		log:      log.With().Str("component", "profile_handler").Logger(),
	}
}

// ListSkills godoc
// GET /profile/skills
func (h *ProfileHandler) ListSkills(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.Email == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	skills, err := h.profiles.ListSkills(c.Request.Context(), claims.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("List profile skills failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if skills == nil {
		skills = []model.JobSeekerSkill{}
	}

	response.Success(c, http.StatusOK, gin.H{"skills": skills})
}
