package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/pkg/metrics"
)

// PublicProfileView is the redacted projection returned to anonymous viewers.
// Disallowed fields are nil and therefore absent from the JSON payload entirely.
type PublicProfileView struct {
	Name            string            `json:"name"`
	Bio             *string           `json:"bio,omitempty"`
	Company         *string           `json:"company,omitempty"`
	JobTitle        *string           `json:"job_title,omitempty"`
	ProfileImageURL *string           `json:"profile_image_url,omitempty"`
	Interests       []string          `json:"interests,omitempty"`
	SocialLinks     map[string]string `json:"social_links,omitempty"`
	PublicURL       string            `json:"public_url"`
}

// ResolverOption customises ResolverService behaviour.
type ResolverOption func(*ResolverService)

// WithResolverClock injects a custom clock primarily for testing.
func WithResolverClock(clock func() time.Time) ResolverOption {
	return func(s *ResolverService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ResolverService turns a connection code into a field-filtered profile view for
// anonymous callers. Every check fails closed to ErrCodeNotFound except expiry of a
// code the caller demonstrably holds, which reveals nothing they do not already know.
type ResolverService struct {
	db    *gorm.DB
	codes *CodeService
	now   func() time.Time
}

// NewResolverService constructs a ResolverService.
func NewResolverService(db *gorm.DB, codes *CodeService, opts ...ResolverOption) (*ResolverService, error) {
	if db == nil {
		return nil, errors.New("resolver service: db is required")
	}
	if codes == nil {
		return nil, errors.New("resolver service: code service is required")
	}

	service := &ResolverService{
		db:    db,
		codes: codes,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Resolve validates the code and returns the owner's filtered public profile.
// The checks run in a fixed order and each short-circuits on failure.
func (s *ResolverService) Resolve(ctx context.Context, code string) (*PublicProfileView, error) {
	view, err := s.resolve(ctx, code)
	switch {
	case err == nil:
		metrics.CodeResolves.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrCodeExpired):
		metrics.CodeResolves.WithLabelValues("expired").Inc()
	case errors.Is(err, ErrCodeNotFound):
		metrics.CodeResolves.WithLabelValues("not_found").Inc()
	default:
		metrics.CodeResolves.WithLabelValues("error").Inc()
	}
	return view, err
}

func (s *ResolverService) resolve(ctx context.Context, code string) (*PublicProfileView, error) {
	ctx = ensureContext(ctx)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeNotFound
	}

	var record models.ConnectionCode
	if err := s.db.WithContext(ctx).
		First(&record, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("resolver service: load code: %w", err)
	}

	if !record.IsActive {
		return nil, ErrCodeNotFound
	}
	if record.Expired(s.now().UTC()) {
		return nil, ErrCodeExpired
	}

	view, err := s.buildView(ctx, record.OwnerUserID)
	if err != nil {
		return nil, err
	}

	view.PublicURL = s.codes.PublicURL(record.Code)
	return view, nil
}

// ResolveOwner returns the owning user id for a currently usable code. Shares the
// resolver's fail-closed semantics; used to re-validate codes at submission time.
func (s *ResolverService) ResolveOwner(ctx context.Context, code string) (string, error) {
	ctx = ensureContext(ctx)

	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrCodeNotFound
	}

	var record models.ConnectionCode
	if err := s.db.WithContext(ctx).
		First(&record, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("resolver service: load code: %w", err)
	}

	if !record.IsActive {
		return "", ErrCodeNotFound
	}
	if record.Expired(s.now().UTC()) {
		return "", ErrCodeExpired
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).
		Select("id", "public_enabled").
		First(&profile, "user_id = ?", record.OwnerUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("resolver service: load profile: %w", err)
	}
	if !profile.PublicEnabled {
		return "", ErrCodeNotFound
	}

	return record.OwnerUserID, nil
}

// PreviewForOwner renders the owner's own public view without touching the code path,
// so previews never produce scan telemetry.
func (s *ResolverService) PreviewForOwner(ctx context.Context, ownerID string) (*PublicProfileView, error) {
	ctx = ensureContext(ctx)

	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("resolver service: owner id is required")
	}

	view, err := s.buildView(ctx, ownerID)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			// The owner is entitled to know their preview is disabled.
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	if current, err := s.codes.Current(ctx, ownerID); err == nil {
		view.PublicURL = current.PublicURL
	}
	return view, nil
}

func (s *ResolverService) buildView(ctx context.Context, ownerID string) (*PublicProfileView, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).
		Preload("User").
		First(&profile, "user_id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("resolver service: load profile: %w", err)
	}

	if !profile.PublicEnabled {
		return nil, ErrCodeNotFound
	}

	view := &PublicProfileView{
		Name: profile.User.DisplayName(),
	}

	if profile.AllowBio && profile.Bio != "" {
		bio := profile.Bio
		view.Bio = &bio
	}
	if profile.AllowCompany && profile.Company != "" {
		company := profile.Company
		view.Company = &company
	}
	if profile.AllowJobTitle && profile.JobTitle != "" {
		title := profile.JobTitle
		view.JobTitle = &title
	}
	if profile.AllowProfileImage && profile.ProfileImageURL != "" {
		image := profile.ProfileImageURL
		view.ProfileImageURL = &image
	}
	if profile.AllowInterests && len(profile.Interests) > 0 {
		view.Interests = append([]string(nil), profile.Interests...)
	}
	if profile.AllowSocialLinks {
		if links := profile.SocialLinks.Data(); len(links) > 0 {
			view.SocialLinks = make(map[string]string, len(links))
			for platform, url := range links {
				view.SocialLinks[platform] = url
			}
		}
	}

	return view, nil
}
