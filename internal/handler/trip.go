package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medtransit/internal/domain"
	"medtransit/internal/service"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// TripHandler handles HTTP requests for trips and their audit surfaces.
type TripHandler struct {
	lifecycle     *service.TripLifecycleService
	dispatcher    *service.Dispatcher
	payoutService *service.PayoutService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(lifecycle *service.TripLifecycleService, dispatcher *service.Dispatcher, payoutService *service.PayoutService) *TripHandler {
	return &TripHandler{
		lifecycle:     lifecycle,
		dispatcher:    dispatcher,
		payoutService: payoutService,
	}
}

// CreateTripRequest is the HTTP request body for creating a trip.
type CreateTripRequest struct {
	WillCall          bool     `json:"will_call"`
	ScheduledPickupAt string   `json:"scheduled_pickup_at"`
	RiderID           string   `json:"rider_id" binding:"required"`
	RiderPhone        string   `json:"rider_phone"`
	FacilityID        string   `json:"facility_id" binding:"required"`
	ServiceLevel      string   `json:"service_level" binding:"required"`
	Tags              []string `json:"tags"`
	PickupAddress     string   `json:"pickup_address"`
	DropoffAddress    string   `json:"dropoff_address"`
	MileageMiles      float64  `json:"mileage_miles"`
	Actor             string   `json:"actor" binding:"required"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	TripID            string   `json:"trip_id"`
	Status            string   `json:"status"`
	WillCall          bool     `json:"will_call"`
	ScheduledPickupAt string   `json:"scheduled_pickup_at,omitempty"`
	PickedUpAt        string   `json:"picked_up_at,omitempty"`
	DroppedOffAt      string   `json:"dropped_off_at,omitempty"`
	CancelledAt       string   `json:"cancelled_at,omitempty"`
	DriverID          string   `json:"driver_id,omitempty"`
	RiderID           string   `json:"rider_id"`
	FacilityID        string   `json:"facility_id"`
	ServiceLevel      string   `json:"service_level"`
	Tags              []string `json:"tags,omitempty"`
	MileageMiles      float64  `json:"mileage_miles"`
	CancelReason      string   `json:"cancel_reason,omitempty"`
	Version           int64    `json:"version"`
}

func toTripResponse(trip *domain.Trip) TripResponse {
	resp := TripResponse{
		TripID:       trip.ID,
		Status:       string(trip.Status),
		WillCall:     trip.WillCall,
		DriverID:     trip.DriverID,
		RiderID:      trip.RiderID,
		FacilityID:   trip.FacilityID,
		ServiceLevel: string(trip.ServiceLevel),
		Tags:         trip.Tags,
		MileageMiles: trip.MileageMiles,
		CancelReason: trip.CancelReason,
		Version:      trip.Version,
	}

	if !trip.ScheduledPickupAt.IsZero() {
		resp.ScheduledPickupAt = trip.ScheduledPickupAt.Format(timeLayout)
	}
	if !trip.PickedUpAt.IsZero() {
		resp.PickedUpAt = trip.PickedUpAt.Format(timeLayout)
	}
	if !trip.DroppedOffAt.IsZero() {
		resp.DroppedOffAt = trip.DroppedOffAt.Format(timeLayout)
	}
	if !trip.CancelledAt.IsZero() {
		resp.CancelledAt = trip.CancelledAt.Format(timeLayout)
	}

	return resp
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var scheduledAt time.Time
	if req.ScheduledPickupAt != "" {
		var err error
		scheduledAt, err = time.Parse(timeLayout, req.ScheduledPickupAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid scheduled_pickup_at"})
			return
		}
	}

	trip, err := h.lifecycle.CreateTrip(c.Request.Context(), service.CreateTripRequest{
		WillCall:          req.WillCall,
		ScheduledPickupAt: scheduledAt,
		RiderID:           req.RiderID,
		RiderPhone:        req.RiderPhone,
		FacilityID:        req.FacilityID,
		ServiceLevel:      domain.ServiceLevel(req.ServiceLevel),
		Tags:              req.Tags,
		PickupAddress:     req.PickupAddress,
		DropoffAddress:    req.DropoffAddress,
		MileageMiles:      req.MileageMiles,
		Actor:             req.Actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTripResponse(trip))
}

// UpdateStatusRequest is the HTTP request body for a status transition.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason"`
}

// UpdateStatus handles POST /v1/trips/:id/status
func (h *TripHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	trip, err := h.lifecycle.Transition(c.Request.Context(), service.TransitionRequest{
		TripID: c.Param("id"),
		Target: domain.TripStatus(req.Status),
		Actor:  req.Actor,
		Reason: req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// AssignDriverRequest is the HTTP request body for a driver assignment.
type AssignDriverRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
	Actor    string `json:"actor" binding:"required"`
}

// AssignDriver handles POST /v1/trips/:id/assign
func (h *TripHandler) AssignDriver(c *gin.Context) {
	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	trip, err := h.lifecycle.AssignDriver(c.Request.Context(), service.AssignDriverRequest{
		TripID:   c.Param("id"),
		DriverID: req.DriverID,
		Actor:    req.Actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// ReinstateRequest is the HTTP request body for re-opening a closed trip.
type ReinstateRequest struct {
	Status string `json:"status" binding:"required"`
	Actor  string `json:"actor" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// Reinstate handles POST /v1/trips/:id/reinstate
func (h *TripHandler) Reinstate(c *gin.Context) {
	var req ReinstateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	trip, err := h.lifecycle.Reinstate(c.Request.Context(), service.ReinstateRequest{
		TripID: c.Param("id"),
		Target: domain.TripStatus(req.Status),
		Actor:  req.Actor,
		Reason: req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.lifecycle.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// GetAll handles GET /v1/trips
func (h *TripHandler) GetAll(c *gin.Context) {
	trips, err := h.lifecycle.GetAllTrips(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripResponse, 0, len(trips))
	for _, trip := range trips {
		response = append(response, toTripResponse(trip))
	}

	c.JSON(http.StatusOK, response)
}

// HistoryEntryResponse is one audit entry in the history response.
type HistoryEntryResponse struct {
	ID         string `json:"id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	ChangeType string `json:"change_type"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// History handles GET /v1/trips/:id/history
func (h *TripHandler) History(c *gin.Context) {
	entries, err := h.lifecycle.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, HistoryEntryResponse{
			ID:         entry.ID,
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			ChangeType: string(entry.ChangeType),
			Actor:      entry.Actor,
			Reason:     entry.Reason,
			CreatedAt:  entry.CreatedAt.Format(timeLayout),
		})
	}

	c.JSON(http.StatusOK, response)
}

// NotificationJobResponse is one delivery record in the notifications response.
type NotificationJobResponse struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Channel     string `json:"channel"`
	Recipient   string `json:"recipient"`
	Body        string `json:"body"`
	Status      string `json:"status"`
	ErrorDetail string `json:"error_detail,omitempty"`
	ProviderRef string `json:"provider_ref,omitempty"`
	CreatedAt   string `json:"created_at"`
	SentAt      string `json:"sent_at,omitempty"`
}

// Notifications handles GET /v1/trips/:id/notifications
func (h *TripHandler) Notifications(c *gin.Context) {
	jobs, err := h.dispatcher.ListByTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NotificationJobResponse, 0, len(jobs))
	for _, job := range jobs {
		jr := NotificationJobResponse{
			ID:          job.ID,
			Category:    string(job.Category),
			Channel:     string(job.Channel),
			Recipient:   job.Recipient,
			Body:        job.Body,
			Status:      string(job.Status),
			ErrorDetail: job.ErrorDetail,
			ProviderRef: job.ProviderRef,
			CreatedAt:   job.CreatedAt.Format(timeLayout),
		}
		if !job.SentAt.IsZero() {
			jr.SentAt = job.SentAt.Format(timeLayout)
		}
		response = append(response, jr)
	}

	c.JSON(http.StatusOK, response)
}

// PayoutResponse is the HTTP response for a trip payout.
type PayoutResponse struct {
	ID       string  `json:"id"`
	TripID   string  `json:"trip_id"`
	DriverID string  `json:"driver_id"`
	Amount   float64 `json:"amount"`
	Status   string  `json:"status"`
}

// Payout handles GET /v1/trips/:id/payout
func (h *TripHandler) Payout(c *gin.Context) {
	payout, err := h.payoutService.GetByTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if payout == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no payout recorded for trip"})
		return
	}

	respondJSON(c, http.StatusOK, PayoutResponse{
		ID:       payout.ID,
		TripID:   payout.TripID,
		DriverID: payout.DriverID,
		Amount:   payout.Amount,
		Status:   string(payout.Status),
	})
}
