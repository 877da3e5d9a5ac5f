package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/pkg/logger"
	"github.com/nexcard/nexcard/pkg/mail"
	"github.com/nexcard/nexcard/pkg/metrics"
)

const defaultInvitationExpiry = 7 * 24 * time.Hour

// ErrEmailDelivery signals that the invitation row was persisted but the outbound
// email failed. Callers keep the invitation and offer a resend path.
var ErrEmailDelivery = errors.New("invitation: email delivery failed")

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationBaseURL configures the base URL used in registration links.
func WithInvitationBaseURL(url string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInvitationExpiry overrides the invitation lifetime.
func WithInvitationExpiry(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationService manages the connect-by-email workflow: an anonymous viewer submits
// a recipient address against a live code, and a later registration with that address
// links the invitation into a mutual connection.
type InvitationService struct {
	db       *gorm.DB
	mailer   mail.Mailer
	resolver *ResolverService
	log      *zap.Logger
	baseURL  string
	expiry   time.Duration
	now      func() time.Time
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
func NewInvitationService(db *gorm.DB, mailer mail.Mailer, resolver *ResolverService, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if resolver == nil {
		return nil, errors.New("invitation service: resolver is required")
	}

	service := &InvitationService{
		db:       db,
		mailer:   mailer,
		resolver: resolver,
		log:      logger.WithModule("invitations"),
		expiry:   defaultInvitationExpiry,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// SubmitInput carries the anonymous viewer's connection request payload.
type SubmitInput struct {
	Code           string
	RecipientEmail string
	Message        string
	Location       string
	DeviceInfo     string
}

// Submit validates the code at submission time, persists the invitation, and sends the
// registration email. Re-submitting the same (code, email) pair while a prior
// invitation is still live refreshes its expiry and resends it instead of creating
// a duplicate.
func (s *InvitationService) Submit(ctx context.Context, input SubmitInput) (*models.EmailInvitation, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.RecipientEmail))
	if email == "" {
		return nil, errors.New("invitation service: recipient email is required")
	}

	// The code must still be live now, not merely at page-load time.
	ownerID, err := s.resolver.ResolveOwner(ctx, input.Code)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	code := strings.TrimSpace(input.Code)

	var (
		invitation *models.EmailInvitation
		created    bool
		refreshed  bool
	)

	// Check-then-create runs inside one transaction so concurrent submits for the
	// same (code, email) pair cannot both reach the create branch.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.EmailInvitation
		err := tx.
			Where("connection_code = ? AND recipient_email = ?", code, email).
			Order("created_at DESC").
			First(&existing).Error
		switch {
		case err == nil:
			if existing.Status == models.InvitationStatusRegistered {
				// Idempotent success: the recipient already connected through this code.
				invitation = &existing
				return nil
			}
			if existing.Status == models.InvitationStatusSent && now.Before(existing.ExpiresAt) {
				// Refresh the window instead of duplicating the row.
				expires := now.Add(s.expiry)
				if err := tx.Model(&existing).Update("expires_at", expires).Error; err != nil {
					return fmt.Errorf("invitation service: refresh expiry: %w", err)
				}
				existing.ExpiresAt = expires
				invitation = &existing
				refreshed = true
				return nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// fall through to create
		default:
			return fmt.Errorf("invitation service: find existing: %w", err)
		}

		scanData := map[string]string{}
		if input.Location != "" {
			scanData["location"] = input.Location
		}
		if input.DeviceInfo != "" {
			scanData["device_info"] = input.DeviceInfo
		}

		fresh := models.EmailInvitation{
			RecipientEmail: email,
			SenderUserID:   ownerID,
			ConnectionCode: code,
			Message:        strings.TrimSpace(input.Message),
			ScanData:       datatypes.NewJSONType(scanData),
			ExpiresAt:      now.Add(s.expiry),
			Status:         models.InvitationStatusSent,
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return fmt.Errorf("invitation service: create: %w", err)
		}
		invitation = &fresh
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case created:
		metrics.Invitations.WithLabelValues("sent").Inc()
		if err := s.deliver(ctx, invitation, now); err != nil {
			// The row survives; delivery is retried through the resend path.
			return invitation, err
		}
		return invitation, nil
	case refreshed:
		return s.resend(ctx, invitation, now)
	default:
		return invitation, nil
	}
}

// Resend re-dispatches the invitation email for a live invitation. Scoped to the
// sender: other users' invitations look absent.
func (s *InvitationService) Resend(ctx context.Context, senderID, invitationID string) (*models.EmailInvitation, error) {
	ctx = ensureContext(ctx)

	var invitation models.EmailInvitation
	if err := s.db.WithContext(ctx).
		First(&invitation, "id = ? AND sender_user_id = ?", strings.TrimSpace(invitationID), strings.TrimSpace(senderID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("invitation service: load: %w", err)
	}

	now := s.now().UTC()
	if invitation.Status != models.InvitationStatusSent || !now.Before(invitation.ExpiresAt) {
		return nil, ErrInvitationExpired
	}

	return s.resend(ctx, &invitation, now)
}

func (s *InvitationService) resend(ctx context.Context, invitation *models.EmailInvitation, now time.Time) (*models.EmailInvitation, error) {
	if err := s.deliver(ctx, invitation, now); err != nil {
		return invitation, err
	}
	metrics.Invitations.WithLabelValues("resent").Inc()
	return invitation, nil
}

func (s *InvitationService) deliver(ctx context.Context, invitation *models.EmailInvitation, now time.Time) error {
	if s.mailer == nil {
		return nil
	}

	var sender models.User
	if err := s.db.WithContext(ctx).
		Select("id", "username", "email", "first_name", "last_name").
		First(&sender, "id = ?", invitation.SenderUserID).Error; err != nil {
		s.log.Warn("invitation sender lookup failed", zap.String("invitation_id", invitation.ID), zap.Error(err))
	}

	message := mail.Message{
		To:      []string{invitation.RecipientEmail},
		Subject: fmt.Sprintf("%s wants to connect on NexCard", senderName(&sender)),
		Body:    s.invitationBody(invitation, &sender),
	}

	if err := s.mailer.Send(ctx, message); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("invitation email delivery failed",
			zap.String("invitation_id", invitation.ID),
			zap.Error(err),
		)
		return ErrEmailDelivery
	}

	sentAt := now
	if err := s.db.WithContext(ctx).Model(invitation).
		Update("email_sent_at", sentAt).Error; err != nil {
		return fmt.Errorf("invitation service: stamp sent time: %w", err)
	}
	invitation.EmailSentAt = &sentAt
	return nil
}

// RegistrationURL renders the link a recipient follows to register and connect.
func (s *InvitationService) RegistrationURL(invitation *models.EmailInvitation) string {
	return fmt.Sprintf("%s/register?invitation=%s&code=%s", s.baseURL, invitation.ID, invitation.ConnectionCode)
}

func (s *InvitationService) invitationBody(invitation *models.EmailInvitation, sender *models.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n%s would like to add you to their professional network.\n\n", senderName(sender))
	if invitation.Message != "" {
		fmt.Fprintf(&b, "They included a message:\n%s\n\n", invitation.Message)
	}
	fmt.Fprintf(&b, "Create your account to connect:\n%s\n\n", s.RegistrationURL(invitation))
	fmt.Fprintf(&b, "This invitation expires on %s. If you did not expect it, you can ignore this email.\n",
		invitation.ExpiresAt.Format("2 January 2006"))
	return b.String()
}

func senderName(sender *models.User) string {
	if name := sender.DisplayName(); name != "" {
		return name
	}
	return "A NexCard member"
}

// LinkRegistration is the hook the registration flow calls once an account exists.
// Every live invitation addressed to the new account's email is atomically marked
// registered and materialised into a mutual connection. Idempotent: replays observe
// the terminal state and change nothing.
func (s *InvitationService) LinkRegistration(ctx context.Context, userID, email string) (int, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	email = strings.ToLower(strings.TrimSpace(email))
	if userID == "" || email == "" {
		return 0, errors.New("invitation service: user id and email are required")
	}

	now := s.now().UTC()

	var pending []models.EmailInvitation
	if err := s.db.WithContext(ctx).
		Where("recipient_email = ? AND status = ? AND expires_at > ?", email, models.InvitationStatusSent, now).
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("invitation service: load pending: %w", err)
	}

	linked := 0
	for i := range pending {
		invitation := &pending[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Conditional update doubles as the double-linking guard: first writer
			// wins, replays match zero rows and fall through.
			result := tx.Model(&models.EmailInvitation{}).
				Where("id = ? AND status = ?", invitation.ID, models.InvitationStatusSent).
				Updates(map[string]any{
					"status":                    models.InvitationStatusRegistered,
					"registered_user_id":        userID,
					"registration_completed_at": now,
				})
			if result.Error != nil {
				return fmt.Errorf("invitation service: mark registered: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return nil
			}

			if err := createMutualConnection(tx, invitation.SenderUserID, userID, models.ConnectionSourceInvitation); err != nil {
				return err
			}

			linked++
			return nil
		})
		if err != nil {
			return linked, err
		}
	}

	if linked > 0 {
		metrics.Invitations.WithLabelValues("registered").Add(float64(linked))
	}
	return linked, nil
}
