package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
	"github.com/nexcard/nexcard/pkg/crypto"
	"github.com/nexcard/nexcard/pkg/logger"
)

// ErrEmailTaken indicates an account already exists for the email address.
var ErrEmailTaken = errors.New("account: email already registered")

// AccountService is the thin boundary to the external auth collaborator: it creates
// accounts, verifies credentials, and fires the invitation-linking hook on registration.
type AccountService struct {
	db          *gorm.DB
	invitations *InvitationService
	log         *zap.Logger
	now         func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(db *gorm.DB, invitations *InvitationService) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	if invitations == nil {
		return nil, errors.New("account service: invitation service is required")
	}

	return &AccountService{
		db:          db,
		invitations: invitations,
		log:         logger.WithModule("accounts"),
		now:         time.Now,
	}, nil
}

// RegisterInput carries the registration payload.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates the account with an empty profile, then links any pending
// invitations addressed to the email. Linking is part of account finalisation so a
// registration triggered by an invitation email lands with the connection in place.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)
	if email == "" || username == "" {
		return nil, errors.New("account service: username and email are required")
	}
	if input.Password == "" {
		return nil, errors.New("account service: password is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account service: hash password: %w", err)
	}

	user := models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		IsActive:  true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("account service: create user: %w", err)
		}
		if err := tx.Create(&models.Profile{UserID: user.ID}).Error; err != nil {
			return fmt.Errorf("account service: create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	linked, err := s.invitations.LinkRegistration(ctx, user.ID, email)
	if err != nil {
		// The account exists; linking is retried by the next login or a manual sweep.
		s.log.Error("invitation linking failed during registration",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	} else if linked > 0 {
		s.log.Info("linked invitations on registration",
			zap.String("user_id", user.ID),
			zap.Int("count", linked),
		)
	}

	return &user, nil
}

// Authenticate verifies credentials and returns the account.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errors.New("account service: email and password are required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).
		First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("account service: load user: %w", err)
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).
		Update("last_login_at", now).Error; err != nil {
		s.log.Warn("failed to stamp last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	return &user, nil
}
