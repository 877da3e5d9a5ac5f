package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/middleware"
	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/internal/services"
	appErrors "github.com/nexcard/nexcard/pkg/errors"
	"github.com/nexcard/nexcard/pkg/response"
)

// ProfileHandler exposes the owner's visibility controls and public preview.
type ProfileHandler struct {
	profiles *services.ProfileService
	resolver *services.ResolverService
}

// NewProfileHandler configures a profile handler with required services.
func NewProfileHandler(profiles *services.ProfileService, resolver *services.ResolverService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, resolver: resolver}
}

type visibilityRequest struct {
	PublicEnabled     *bool `json:"public_enabled"`
	AllowBio          *bool `json:"allow_bio"`
	AllowCompany      *bool `json:"allow_company"`
	AllowJobTitle     *bool `json:"allow_job_title"`
	AllowProfileImage *bool `json:"allow_profile_image"`
	AllowInterests    *bool `json:"allow_interests"`
	AllowSocialLinks  *bool `json:"allow_social_links"`
}

type visibilityDTO struct {
	PublicEnabled     bool `json:"public_enabled"`
	AllowBio          bool `json:"allow_bio"`
	AllowCompany      bool `json:"allow_company"`
	AllowJobTitle     bool `json:"allow_job_title"`
	AllowProfileImage bool `json:"allow_profile_image"`
	AllowInterests    bool `json:"allow_interests"`
	AllowSocialLinks  bool `json:"allow_social_links"`
}

// GET /api/profile/preview
func (h *ProfileHandler) Preview(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.resolver.PreviewForOwner(requestContext(c), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		response.Error(c, appErrors.FromError(err))
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GET /api/profile/visibility
func (h *ProfileHandler) GetVisibility(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.profiles.Get(requestContext(c), userID)
	if err != nil {
		respondProfileError(c, err)
		return
	}

	response.Success(c, http.StatusOK, toVisibilityDTO(profile))
}

// PUT /api/profile/visibility
func (h *ProfileHandler) UpdateVisibility(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req visibilityRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.profiles.UpdateVisibility(requestContext(c), userID, services.VisibilityInput{
		PublicEnabled:     req.PublicEnabled,
		AllowBio:          req.AllowBio,
		AllowCompany:      req.AllowCompany,
		AllowJobTitle:     req.AllowJobTitle,
		AllowProfileImage: req.AllowProfileImage,
		AllowInterests:    req.AllowInterests,
		AllowSocialLinks:  req.AllowSocialLinks,
	})
	if err != nil {
		respondProfileError(c, err)
		return
	}

	response.Success(c, http.StatusOK, toVisibilityDTO(profile))
}

func toVisibilityDTO(profile *models.Profile) visibilityDTO {
	return visibilityDTO{
		PublicEnabled:     profile.PublicEnabled,
		AllowBio:          profile.AllowBio,
		AllowCompany:      profile.AllowCompany,
		AllowJobTitle:     profile.AllowJobTitle,
		AllowProfileImage: profile.AllowProfileImage,
		AllowInterests:    profile.AllowInterests,
		AllowSocialLinks:  profile.AllowSocialLinks,
	}
}

func respondProfileError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrProfileNotFound) {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	response.Error(c, appErrors.FromError(err))
}
