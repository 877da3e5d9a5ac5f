package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexcard/nexcard/internal/middleware"
	"github.com/nexcard/nexcard/internal/services"
	appErrors "github.com/nexcard/nexcard/pkg/errors"
	"github.com/nexcard/nexcard/pkg/qr"
	"github.com/nexcard/nexcard/pkg/response"
)

// CodeHandler exposes the owner-facing connection code endpoints.
type CodeHandler struct {
	codes *services.CodeService
	scans *services.ScanRecorder
}

// NewCodeHandler configures a code handler with required services.
func NewCodeHandler(codes *services.CodeService, scans *services.ScanRecorder) *CodeHandler {
	return &CodeHandler{codes: codes, scans: scans}
}

// POST /api/codes
func (h *CodeHandler) Issue(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	issued, err := h.codes.IssueOrRefresh(requestContext(c), userID)
	if err != nil {
		respondCodeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, issued)
}

// POST /api/codes/rotate
func (h *CodeHandler) Rotate(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	issued, err := h.codes.Rotate(requestContext(c), userID)
	if err != nil {
		respondCodeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, issued)
}

// GET /api/codes
func (h *CodeHandler) Current(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	issued, err := h.codes.Current(requestContext(c), userID)
	if err != nil {
		respondCodeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, issued)
}

// DELETE /api/codes
func (h *CodeHandler) Deactivate(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.codes.Deactivate(requestContext(c), userID); err != nil {
		respondCodeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deactivated": true})
}

// GET /api/codes/qr
func (h *CodeHandler) QR(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	issued, err := h.codes.Current(requestContext(c), userID)
	if err != nil {
		respondCodeError(c, err)
		return
	}

	size := parseIntQuery(c, "size", qr.DefaultSize)
	png, err := qr.EncodePNG(issued.PublicURL, size)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to render QR code"))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// GET /api/codes/stats
func (h *CodeHandler) Stats(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "recent", 10)
	stats, err := h.scans.Stats(requestContext(c), userID, limit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to load scan stats"))
		return
	}

	response.Success(c, http.StatusOK, stats)
}

func respondCodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCodeNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrCodeExpired):
		response.Error(c, appErrors.ErrCodeExpired)
	case errors.Is(err, services.ErrProfileNotFound):
		response.Error(c, appErrors.ErrNotFound)
	default:
		response.Error(c, appErrors.FromError(err))
	}
}
