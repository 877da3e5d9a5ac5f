package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/pkg/logger"
	"github.com/nexcard/nexcard/pkg/metrics"
)

// SweepOption customises SweepService behaviour.
type SweepOption func(*SweepService)

// WithSweepClock injects a custom clock primarily for testing.
func WithSweepClock(clock func() time.Time) SweepOption {
	return func(s *SweepService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// SweepService retires expired connection codes and invitations. Both updates are
// idempotent bulk statements, safe to run concurrently with themselves.
type SweepService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewSweepService constructs a SweepService.
func NewSweepService(db *gorm.DB, opts ...SweepOption) (*SweepService, error) {
	if db == nil {
		return nil, errors.New("sweep service: db is required")
	}

	service := &SweepService{
		db:  db,
		log: logger.WithModule("sweep"),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// SweepResult reports how many rows each sweep retired.
type SweepResult struct {
	CodesDeactivated   int64 `json:"codes_deactivated"`
	InvitationsExpired int64 `json:"invitations_expired"`
}

// SweepExpired deactivates expired codes and expires stale sent invitations.
func (s *SweepService) SweepExpired(ctx context.Context) (*SweepResult, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	result := &SweepResult{}

	codes := s.db.WithContext(ctx).Model(&models.ConnectionCode{}).
		Where("is_active = ? AND expires_at <= ?", true, now).
		Update("is_active", false)
	if codes.Error != nil {
		return nil, fmt.Errorf("sweep service: deactivate codes: %w", codes.Error)
	}
	result.CodesDeactivated = codes.RowsAffected

	invitations := s.db.WithContext(ctx).Model(&models.EmailInvitation{}).
		Where("status = ? AND expires_at <= ?", models.InvitationStatusSent, now).
		Update("status", models.InvitationStatusExpired)
	if invitations.Error != nil {
		return nil, fmt.Errorf("sweep service: expire invitations: %w", invitations.Error)
	}
	result.InvitationsExpired = invitations.RowsAffected

	if result.InvitationsExpired > 0 {
		metrics.Invitations.WithLabelValues("expired").Add(float64(result.InvitationsExpired))
	}

	if result.CodesDeactivated > 0 || result.InvitationsExpired > 0 {
		s.log.Info("sweep completed",
			zap.Int64("codes_deactivated", result.CodesDeactivated),
			zap.Int64("invitations_expired", result.InvitationsExpired),
		)
	}

	return result, nil
}
