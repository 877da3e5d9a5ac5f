package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexcard/nexcard/internal/models"
)

// createMutualConnection writes the contact edge in both directions inside the
// caller's transaction. Existing edges are left untouched so linking stays idempotent.
func createMutualConnection(tx *gorm.DB, userA, userB, source string) error {
	if userA == "" || userB == "" {
		return errors.New("connections: both user ids are required")
	}
	if userA == userB {
		return errors.New("connections: cannot connect a user to themselves")
	}

	edges := []models.Connection{
		{UserID: userA, ContactUserID: userB, Source: source},
		{UserID: userB, ContactUserID: userA, Source: source},
	}

	for i := range edges {
		err := tx.Where(models.Connection{
			UserID:        edges[i].UserID,
			ContactUserID: edges[i].ContactUserID,
		}).Attrs(edges[i]).FirstOrCreate(&models.Connection{}).Error
		if err != nil {
			if isUniqueConstraintError(err) {
				continue
			}
			return fmt.Errorf("connections: create edge: %w", err)
		}
	}
	return nil
}

// ConnectionOption customises ConnectionService behaviour.
type ConnectionOption func(*ConnectionService)

// WithConnectionClock injects a custom clock primarily for testing.
func WithConnectionClock(clock func() time.Time) ConnectionOption {
	return func(s *ConnectionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ConnectionService manages mutual connections and the request path used by viewers
// who already hold an account.
type ConnectionService struct {
	db       *gorm.DB
	resolver *ResolverService
	now      func() time.Time
}

// NewConnectionService constructs a ConnectionService.
func NewConnectionService(db *gorm.DB, resolver *ResolverService, opts ...ConnectionOption) (*ConnectionService, error) {
	if db == nil {
		return nil, errors.New("connection service: db is required")
	}
	if resolver == nil {
		return nil, errors.New("connection service: resolver is required")
	}

	service := &ConnectionService{
		db:       db,
		resolver: resolver,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// ContactDTO is one entry in a user's contact list.
type ContactDTO struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Source      string    `json:"source"`
	ConnectedAt time.Time `json:"connected_at"`
}

// ListContacts returns the user's mutual connections, newest first.
func (s *ConnectionService) ListContacts(ctx context.Context, userID string) ([]ContactDTO, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("connection service: user id is required")
	}

	var edges []models.Connection
	if err := s.db.WithContext(ctx).
		Preload("Contact").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("connection service: list: %w", err)
	}

	contacts := make([]ContactDTO, 0, len(edges))
	for _, edge := range edges {
		dto := ContactDTO{
			UserID:      edge.ContactUserID,
			Source:      edge.Source,
			ConnectedAt: edge.CreatedAt,
		}
		if edge.Contact != nil {
			dto.Name = edge.Contact.DisplayName()
			dto.Email = edge.Contact.Email
		}
		contacts = append(contacts, dto)
	}
	return contacts, nil
}

// RequestInput describes a connection request from an already-registered viewer.
type RequestInput struct {
	Code           string
	RequesterID    string
	RequesterEmail string
	Message        string
	Location       string
}

// SubmitRequest records a pending request against the code owner. The code is
// re-validated at submission time with the same fail-closed rules as a resolve.
func (s *ConnectionService) SubmitRequest(ctx context.Context, input RequestInput) (*models.ConnectionRequest, error) {
	ctx = ensureContext(ctx)

	ownerID, err := s.resolver.ResolveOwner(ctx, input.Code)
	if err != nil {
		return nil, err
	}

	requesterID := strings.TrimSpace(input.RequesterID)
	requesterEmail := strings.ToLower(strings.TrimSpace(input.RequesterEmail))
	if requesterID == "" && requesterEmail == "" {
		return nil, errors.New("connection service: requester id or email is required")
	}
	if requesterID == ownerID {
		return nil, errors.New("connection service: cannot request a connection with yourself")
	}

	// One pending request per requester and target.
	query := s.db.WithContext(ctx).Where("target_user_id = ? AND status = ?", ownerID, models.RequestStatusPending)
	if requesterID != "" {
		query = query.Where("requester_id = ?", requesterID)
	} else {
		query = query.Where("requester_email = ?", requesterEmail)
	}

	var existing models.ConnectionRequest
	err = query.First(&existing).Error
	switch {
	case err == nil:
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	default:
		return nil, fmt.Errorf("connection service: find existing request: %w", err)
	}

	metadata := map[string]string{"method": "code"}
	if input.Message != "" {
		metadata["message"] = input.Message
	}
	if input.Location != "" {
		metadata["location"] = input.Location
	}

	request := models.ConnectionRequest{
		RequesterEmail: requesterEmail,
		TargetUserID:   ownerID,
		Status:         models.RequestStatusPending,
		Metadata:       datatypes.NewJSONType(metadata),
	}
	if requesterID != "" {
		request.RequesterID = &requesterID
	}

	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, fmt.Errorf("connection service: create request: %w", err)
	}
	return &request, nil
}

// ListRequests returns pending requests targeting the user.
func (s *ConnectionService) ListRequests(ctx context.Context, targetUserID string) ([]models.ConnectionRequest, error) {
	ctx = ensureContext(ctx)

	var requests []models.ConnectionRequest
	if err := s.db.WithContext(ctx).
		Where("target_user_id = ? AND status = ?", strings.TrimSpace(targetUserID), models.RequestStatusPending).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("connection service: list requests: %w", err)
	}
	return requests, nil
}

// Respond accepts or declines a pending request. Accepting materialises the mutual
// connection; both operations are first-writer-wins.
func (s *ConnectionService) Respond(ctx context.Context, targetUserID, requestID string, accept bool) (*models.ConnectionRequest, error) {
	ctx = ensureContext(ctx)

	var request models.ConnectionRequest
	if err := s.db.WithContext(ctx).
		First(&request, "id = ? AND target_user_id = ?", strings.TrimSpace(requestID), strings.TrimSpace(targetUserID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("connection service: load request: %w", err)
	}

	if request.Status != models.RequestStatusPending {
		return nil, ErrRequestAlreadyResolved
	}

	status := models.RequestStatusDeclined
	if accept {
		status = models.RequestStatusAccepted
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ConnectionRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
			Update("status", status)
		if result.Error != nil {
			return fmt.Errorf("connection service: update request: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrRequestAlreadyResolved
		}

		if accept && request.RequesterID != nil {
			return createMutualConnection(tx, request.TargetUserID, *request.RequesterID, models.ConnectionSourceRequest)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.Status = status
	return &request, nil
}
