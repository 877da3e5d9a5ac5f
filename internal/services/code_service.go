package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/pkg/crypto"
	"github.com/nexcard/nexcard/pkg/metrics"
)

const (
	defaultCodeExpiry = 24 * time.Hour
	defaultCodeBytes  = 8
	maxCodeAttempts   = 3
)

// CodeOption customises CodeService behaviour.
type CodeOption func(*CodeService)

// WithCodeBaseURL configures the base URL used to build shareable profile links.
func WithCodeBaseURL(url string) CodeOption {
	return func(s *CodeService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithCodeExpiry overrides the code lifetime.
func WithCodeExpiry(d time.Duration) CodeOption {
	return func(s *CodeService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithCodeLength adjusts the random code entropy in bytes.
func WithCodeLength(size int) CodeOption {
	return func(s *CodeService) {
		if size > 0 {
			s.codeLength = size
		}
	}
}

// WithCodeClock injects a custom clock primarily for testing.
func WithCodeClock(clock func() time.Time) CodeOption {
	return func(s *CodeService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// CodeService issues and rotates connection codes, maintaining the invariant that
// an owner has at most one active code at any time.
type CodeService struct {
	db         *gorm.DB
	baseURL    string
	expiry     time.Duration
	codeLength int
	now        func() time.Time
}

// NewCodeService constructs a CodeService with the provided dependencies.
func NewCodeService(db *gorm.DB, opts ...CodeOption) (*CodeService, error) {
	if db == nil {
		return nil, errors.New("code service: db is required")
	}

	service := &CodeService{
		db:         db,
		expiry:     defaultCodeExpiry,
		codeLength: defaultCodeBytes,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// IssuedCode is the owner-facing view of a connection code.
type IssuedCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	PublicURL string    `json:"public_profile_url"`
}

// IssueOrRefresh returns the owner's current active code, minting a fresh one only
// when none exists or the existing one has expired. Idempotent between expiries.
func (s *CodeService) IssueOrRefresh(ctx context.Context, ownerID string) (*IssuedCode, error) {
	return s.issue(ctx, ownerID, false)
}

// Rotate deactivates the owner's current code and mints a replacement unconditionally.
func (s *CodeService) Rotate(ctx context.Context, ownerID string) (*IssuedCode, error) {
	return s.issue(ctx, ownerID, true)
}

func (s *CodeService) issue(ctx context.Context, ownerID string, force bool) (*IssuedCode, error) {
	ctx = ensureContext(ctx)

	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("code service: owner id is required")
	}

	if err := s.ensureProfileExists(ctx, ownerID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var issued *IssuedCode
	reason := "issue"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !force {
			var current models.ConnectionCode
			err := tx.
				Where("owner_user_id = ? AND is_active = ?", ownerID, true).
				Order("created_at DESC").
				First(&current).Error
			switch {
			case err == nil:
				if current.Usable(now) {
					issued = s.issuedView(&current)
					reason = ""
					return nil
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				// fall through to mint
			default:
				return fmt.Errorf("code service: load current code: %w", err)
			}
		} else {
			reason = "rotate"
		}

		// Deactivate-old plus insert-new inside one transaction keeps the
		// single-active-code invariant under concurrent issuance.
		if err := tx.Model(&models.ConnectionCode{}).
			Where("owner_user_id = ? AND is_active = ?", ownerID, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("code service: deactivate previous codes: %w", err)
		}

		record, err := s.mint(tx, ownerID, now)
		if err != nil {
			return err
		}
		issued = s.issuedView(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reason != "" {
		metrics.CodesIssued.WithLabelValues(reason).Inc()
	}
	return issued, nil
}

func (s *CodeService) mint(tx *gorm.DB, ownerID string, now time.Time) (*models.ConnectionCode, error) {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := crypto.GenerateCode(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("code service: generate code: %w", err)
		}

		record := models.ConnectionCode{
			Code:        code,
			OwnerUserID: ownerID,
			IsActive:    true,
			ExpiresAt:   now.Add(s.expiry),
		}

		if err := tx.Create(&record).Error; err != nil {
			if isUniqueConstraintError(err) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("code service: create code: %w", err)
		}
		return &record, nil
	}
	return nil, fmt.Errorf("code service: exhausted code attempts: %w", lastErr)
}

// Deactivate disables the owner's active code without minting a replacement.
func (s *CodeService) Deactivate(ctx context.Context, ownerID string) error {
	ctx = ensureContext(ctx)

	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return errors.New("code service: owner id is required")
	}

	if err := s.db.WithContext(ctx).Model(&models.ConnectionCode{}).
		Where("owner_user_id = ? AND is_active = ?", ownerID, true).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("code service: deactivate: %w", err)
	}
	return nil
}

// Current returns the owner's active code without minting, or ErrCodeNotFound.
func (s *CodeService) Current(ctx context.Context, ownerID string) (*IssuedCode, error) {
	ctx = ensureContext(ctx)

	var current models.ConnectionCode
	err := s.db.WithContext(ctx).
		Where("owner_user_id = ? AND is_active = ?", strings.TrimSpace(ownerID), true).
		Order("created_at DESC").
		First(&current).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("code service: load current code: %w", err)
	}

	if !current.Usable(s.now().UTC()) {
		return nil, ErrCodeNotFound
	}
	return s.issuedView(&current), nil
}

// PublicURL renders the canonical shareable URL for a code.
func (s *CodeService) PublicURL(code string) string {
	if s.baseURL == "" {
		return "/profile/" + code
	}
	return fmt.Sprintf("%s/profile/%s", s.baseURL, code)
}

func (s *CodeService) issuedView(record *models.ConnectionCode) *IssuedCode {
	return &IssuedCode{
		Code:      record.Code,
		ExpiresAt: record.ExpiresAt,
		PublicURL: s.PublicURL(record.Code),
	}
}

func (s *CodeService) ensureProfileExists(ctx context.Context, ownerID string) error {
	var profile models.Profile
	if err := s.db.WithContext(ctx).
		Select("id").
		First(&profile, "user_id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("code service: load profile: %w", err)
	}
	return nil
}
