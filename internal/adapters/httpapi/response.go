package httpapi

import (
	"errors"
	"net/http"

	"auction-ledger-service/internal/domain/shared"

	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response. A bid rejected as too low also
// carries the prevailing price so the caller can retry.
func JSONError(c *gin.Context, err error) {
	status, message := MapErrorToHTTP(err)
	body := gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	}

	var tooLow *shared.BidTooLowError
	if errors.As(err, &tooLow) {
		body["current_price"] = tooLow.CurrentPrice.String()
	}

	c.AbortWithStatusJSON(status, body)
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, shared.ErrAuctionClosed):
		return http.StatusConflict, "auction is closed"
	case errors.Is(err, shared.ErrAuctionNotExpired):
		return http.StatusConflict, "auction has not expired"
	case errors.Is(err, shared.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, shared.ErrSelfBidForbidden):
		return http.StatusForbidden, "cannot bid on own auction"
	case errors.Is(err, shared.ErrNotAuctionOwner):
		return http.StatusForbidden, "not the auction owner"
	case errors.Is(err, shared.ErrInvalidTitle),
		errors.Is(err, shared.ErrInvalidDescription),
		errors.Is(err, shared.ErrInvalidImageRef),
		errors.Is(err, shared.ErrInvalidStartingPrice),
		errors.Is(err, shared.ErrInvalidEndTime),
		errors.Is(err, shared.ErrOwnerRequired),
		errors.Is(err, shared.ErrInvalidCloseTrigger),
		errors.Is(err, shared.ErrInvalidAmount),
		errors.Is(err, shared.ErrUserIDRequired),
		errors.Is(err, shared.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, shared.ErrPersistenceFailure):
		return http.StatusServiceUnavailable, "storage unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
