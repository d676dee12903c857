package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medtransit/internal/repository"
	"medtransit/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrNoPendingConfirmation):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrUnknownStatus),
		errors.Is(err, service.ErrMissingReason),
		errors.Is(err, service.ErrMissingScheduledTime),
		errors.Is(err, service.ErrInvalidAddress):
		return http.StatusBadRequest

	// State conflicts
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrTripTerminal),
		errors.Is(err, service.ErrTripNotTerminal),
		errors.Is(err, service.ErrConfirmationNotAllowed),
		errors.Is(err, service.ErrRecipientSuppressed),
		errors.Is(err, repository.ErrActiveConfirmationExists),
		errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict

	// Concurrent operation in flight
	case errors.Is(err, service.ErrTripBusy):
		return http.StatusLocked

	default:
		return http.StatusInternalServerError
	}
}
