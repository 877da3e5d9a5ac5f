package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
)

// ProfileService covers the owner-facing slice of profile management this subsystem
// needs: the public-preview switch and the per-field visibility flags.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db}, nil
}

// Get loads the owner's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	var profile models.Profile
	if err := s.db.WithContext(ctx).
		First(&profile, "user_id = ?", strings.TrimSpace(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("profile service: load: %w", err)
	}
	return &profile, nil
}

// VisibilityInput updates only the flags that are present.
type VisibilityInput struct {
	PublicEnabled     *bool
	AllowBio          *bool
	AllowCompany      *bool
	AllowJobTitle     *bool
	AllowProfileImage *bool
	AllowInterests    *bool
	AllowSocialLinks  *bool
}

// UpdateVisibility applies the owner's preview and field-level visibility flags.
func (s *ProfileService) UpdateVisibility(ctx context.Context, userID string, input VisibilityInput) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	set := func(column string, value *bool) {
		if value != nil {
			updates[column] = *value
		}
	}
	set("public_enabled", input.PublicEnabled)
	set("allow_bio", input.AllowBio)
	set("allow_company", input.AllowCompany)
	set("allow_job_title", input.AllowJobTitle)
	set("allow_profile_image", input.AllowProfileImage)
	set("allow_interests", input.AllowInterests)
	set("allow_social_links", input.AllowSocialLinks)

	if len(updates) == 0 {
		return profile, nil
	}

	if err := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("profile service: update visibility: %w", err)
	}

	return s.Get(ctx, userID)
}
