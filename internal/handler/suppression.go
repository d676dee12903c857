package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medtransit/internal/domain"
	"medtransit/internal/service"
)

// SuppressionHandler handles HTTP requests for the opt-out registry.
type SuppressionHandler struct {
	suppressionService *service.SuppressionService
}

// NewSuppressionHandler creates a new SuppressionHandler.
func NewSuppressionHandler(suppressionService *service.SuppressionService) *SuppressionHandler {
	return &SuppressionHandler{suppressionService: suppressionService}
}

// SuppressRequest is the HTTP request body for recording an opt-out.
type SuppressRequest struct {
	Address string `json:"address" binding:"required"`
	Channel string `json:"channel" binding:"required"`
}

// SuppressionResponse is the HTTP response for registry lookups.
type SuppressionResponse struct {
	Address        string `json:"address"`
	Channel        string `json:"channel"`
	Suppressed     bool   `json:"suppressed"`
	SuppressedAt   string `json:"suppressed_at,omitempty"`
	ResubscribedAt string `json:"resubscribed_at,omitempty"`
}

// Suppress handles POST /v1/suppressions
func (h *SuppressionHandler) Suppress(c *gin.Context) {
	var req SuppressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	err := h.suppressionService.Suppress(c.Request.Context(), domain.NotificationChannel(req.Channel), req.Address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Resubscribe handles DELETE /v1/suppressions/:address
func (h *SuppressionHandler) Resubscribe(c *gin.Context) {
	channel := domain.NotificationChannel(c.DefaultQuery("channel", string(domain.ChannelSMS)))

	err := h.suppressionService.Resubscribe(c.Request.Context(), channel, c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Get handles GET /v1/suppressions/:address
func (h *SuppressionHandler) Get(c *gin.Context) {
	channel := domain.NotificationChannel(c.DefaultQuery("channel", string(domain.ChannelSMS)))

	entry, err := h.suppressionService.Get(c.Request.Context(), channel, c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "address has no suppression record"})
		return
	}

	resp := SuppressionResponse{
		Address:    entry.Address,
		Channel:    string(entry.Channel),
		Suppressed: entry.Suppressed,
	}
	if !entry.SuppressedAt.IsZero() {
		resp.SuppressedAt = entry.SuppressedAt.Format(timeLayout)
	}
	if !entry.ResubscribedAt.IsZero() {
		resp.ResubscribedAt = entry.ResubscribedAt.Format(timeLayout)
	}

	respondJSON(c, http.StatusOK, resp)
}
