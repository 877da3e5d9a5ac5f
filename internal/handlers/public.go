package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/services"
	appErrors "github.com/nexcard/nexcard/pkg/errors"
	"github.com/nexcard/nexcard/pkg/response"
)

// PublicHandler serves the anonymous endpoints: code resolution and the
// connect-by-email submission. None of these routes require authentication.
type PublicHandler struct {
	resolver    *services.ResolverService
	scans       *services.ScanRecorder
	invitations *services.InvitationService
}

// NewPublicHandler configures the anonymous profile endpoints.
func NewPublicHandler(resolver *services.ResolverService, scans *services.ScanRecorder, invitations *services.InvitationService) *PublicHandler {
	return &PublicHandler{resolver: resolver, scans: scans, invitations: invitations}
}

type submitInvitationRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Message    string `json:"message" validate:"omitempty,max=512"`
	Location   string `json:"location" validate:"omitempty,max=256"`
	DeviceInfo string `json:"device_info" validate:"omitempty,max=512"`
}

type invitationSubmittedResponse struct {
	InvitationID string    `json:"invitation_id"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// GET /api/public/profile/:code
func (h *PublicHandler) ResolveProfile(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	view, err := h.resolver.Resolve(requestContext(c), code)
	if err != nil {
		respondResolveError(c, err)
		return
	}

	// Telemetry is fire-and-forget: it must never delay or fail the resolve.
	h.scans.Record(services.ScanInput{
		Code:       code,
		DeviceInfo: c.Request.UserAgent(),
		Location:   strings.TrimSpace(c.Query("location")),
		Referrer:   c.Request.Referer(),
		SessionID:  strings.TrimSpace(c.Query("session")),
	})

	response.Success(c, http.StatusOK, view)
}

// POST /api/public/profile/:code/invitations
func (h *PublicHandler) SubmitInvitation(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	var req submitInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	deviceInfo := req.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = c.Request.UserAgent()
	}

	invitation, err := h.invitations.Submit(requestContext(c), services.SubmitInput{
		Code:           code,
		RecipientEmail: req.Email,
		Message:        req.Message,
		Location:       req.Location,
		DeviceInfo:     deviceInfo,
	})
	if err != nil && !errors.Is(err, services.ErrEmailDelivery) {
		respondResolveError(c, err)
		return
	}

	body := invitationSubmittedResponse{
		InvitationID: invitation.ID,
		Status:       invitation.Status,
		ExpiresAt:    invitation.ExpiresAt,
	}

	if errors.Is(err, services.ErrEmailDelivery) {
		// The invitation row survived; the client is told delivery is pending.
		response.Success(c, http.StatusAccepted, body)
		return
	}

	response.Success(c, http.StatusCreated, body)
}

func respondResolveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCodeNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrCodeExpired):
		response.Error(c, appErrors.ErrCodeExpired)
	case errors.Is(err, services.ErrInvitationNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrInvitationExpired):
		response.Error(c, appErrors.NewBadRequest("invitation has expired"))
	default:
		response.Error(c, appErrors.FromError(err))
	}
}
