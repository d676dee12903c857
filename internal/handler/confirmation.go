package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medtransit/internal/service"
)

// ConfirmationHandler handles HTTP requests for rider confirmations.
type ConfirmationHandler struct {
	confirmationService *service.ConfirmationService
}

// NewConfirmationHandler creates a new ConfirmationHandler.
func NewConfirmationHandler(confirmationService *service.ConfirmationService) *ConfirmationHandler {
	return &ConfirmationHandler{confirmationService: confirmationService}
}

// ConfirmationResponse is the HTTP response for a confirmation request.
type ConfirmationResponse struct {
	RequestID      string `json:"request_id"`
	TripID         string `json:"trip_id"`
	Status         string `json:"status"`
	RecipientPhone string `json:"recipient_phone"`
	ExpiresAt      string `json:"expires_at"`
	ReplyText      string `json:"reply_text,omitempty"`
	RepromptCount  int    `json:"reprompt_count"`
}

// Request handles POST /v1/trips/:id/confirmation
func (h *ConfirmationHandler) Request(c *gin.Context) {
	req, err := h.confirmationService.RequestConfirmation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, ConfirmationResponse{
		RequestID:      req.ID,
		TripID:         req.TripID,
		Status:         string(req.Status),
		RecipientPhone: req.RecipientPhone,
		ExpiresAt:      req.ExpiresAt.Format(timeLayout),
		RepromptCount:  req.RepromptCount,
	})
}

// GetActive handles GET /v1/trips/:id/confirmation
func (h *ConfirmationHandler) GetActive(c *gin.Context) {
	req, err := h.confirmationService.GetActiveByTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if req == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no open confirmation request for trip"})
		return
	}

	respondJSON(c, http.StatusOK, ConfirmationResponse{
		RequestID:      req.ID,
		TripID:         req.TripID,
		Status:         string(req.Status),
		RecipientPhone: req.RecipientPhone,
		ExpiresAt:      req.ExpiresAt.Format(timeLayout),
		ReplyText:      req.ReplyText,
		RepromptCount:  req.RepromptCount,
	})
}

// InboundRequest is the HTTP request body for the carrier webhook.
type InboundRequest struct {
	From   string `json:"from" binding:"required"`
	Text   string `json:"text" binding:"required"`
	TripID string `json:"trip_id"`
}

// InboundResponse is the structured result of an ingested reply.
type InboundResponse struct {
	Matched         bool   `json:"matched"`
	OptedOut        bool   `json:"opted_out"`
	TripID          string `json:"trip_id,omitempty"`
	Intent          string `json:"intent"`
	ResolvedStatus  string `json:"resolved_status,omitempty"`
	OutboundMessage string `json:"outbound_message,omitempty"`
}

// Inbound handles POST /v1/confirmations/inbound
func (h *ConfirmationHandler) Inbound(c *gin.Context) {
	var req InboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.confirmationService.HandleInboundReply(c.Request.Context(), service.InboundReply{
		From:   req.From,
		Text:   req.Text,
		TripID: req.TripID,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoPendingConfirmation) {
			// Surfaced for dispatcher attention, not silently dropped.
			c.JSON(http.StatusNotFound, gin.H{
				"matched": false,
				"error":   err.Error(),
			})
			return
		}
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, InboundResponse{
		Matched:         result.Matched,
		OptedOut:        result.OptedOut,
		TripID:          result.TripID,
		Intent:          string(result.Intent),
		ResolvedStatus:  string(result.ResolvedStatus),
		OutboundMessage: result.OutboundMessage,
	})
}
