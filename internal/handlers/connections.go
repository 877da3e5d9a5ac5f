package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/middleware"
	"github.com/nexcard/nexcard/internal/services"
	appErrors "github.com/nexcard/nexcard/pkg/errors"
	"github.com/nexcard/nexcard/pkg/response"
)

// ConnectionHandler exposes the owner's contact list, pending requests, and
// invitation management endpoints.
type ConnectionHandler struct {
	connections *services.ConnectionService
	invitations *services.InvitationService
}

// NewConnectionHandler configures a connection handler with required services.
func NewConnectionHandler(connections *services.ConnectionService, invitations *services.InvitationService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, invitations: invitations}
}

type submitRequestRequest struct {
	Code     string `json:"code" validate:"required,min=4,max=64"`
	Message  string `json:"message" validate:"omitempty,max=512"`
	Location string `json:"location" validate:"omitempty,max=256"`
}

type respondRequestRequest struct {
	Accept bool `json:"accept"`
}

// GET /api/connections
func (h *ConnectionHandler) ListContacts(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	contacts, err := h.connections.ListContacts(requestContext(c), userID)
	if err != nil {
		response.Error(c, appErrors.FromError(err))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, contacts, &response.Meta{Total: len(contacts)})
}

// POST /api/requests
func (h *ConnectionHandler) SubmitRequest(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req submitRequestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	request, err := h.connections.SubmitRequest(requestContext(c), services.RequestInput{
		Code:        req.Code,
		RequesterID: userID,
		Message:     req.Message,
		Location:    req.Location,
	})
	if err != nil {
		respondRequestError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, request)
}

// GET /api/requests
func (h *ConnectionHandler) ListRequests(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, err := h.connections.ListRequests(requestContext(c), userID)
	if err != nil {
		response.Error(c, appErrors.FromError(err))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, requests, &response.Meta{Total: len(requests)})
}

// POST /api/requests/:id/respond
func (h *ConnectionHandler) Respond(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requestID := strings.TrimSpace(c.Param("id"))
	if requestID == "" {
		response.Error(c, appErrors.NewBadRequest("request id is required"))
		return
	}

	var req respondRequestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	request, err := h.connections.Respond(requestContext(c), userID, requestID, req.Accept)
	if err != nil {
		respondRequestError(c, err)
		return
	}

	response.Success(c, http.StatusOK, request)
}

// POST /api/invitations/:id/resend
func (h *ConnectionHandler) ResendInvitation(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	invitationID := strings.TrimSpace(c.Param("id"))
	invitation, err := h.invitations.Resend(requestContext(c), userID, invitationID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvitationNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrInvitationExpired):
			response.Error(c, appErrors.NewBadRequest("invitation has expired"))
		case errors.Is(err, services.ErrEmailDelivery):
			response.Error(c, appErrors.ErrDeliveryFailed)
		default:
			response.Error(c, appErrors.FromError(err))
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"invitation_id": invitation.ID,
		"email_sent_at": invitation.EmailSentAt,
	})
}

func respondRequestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCodeNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrCodeExpired):
		response.Error(c, appErrors.ErrCodeExpired)
	case errors.Is(err, services.ErrRequestNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrRequestAlreadyResolved):
		response.Error(c, appErrors.ErrConflict)
	default:
		response.Error(c, appErrors.FromError(err))
	}
}
