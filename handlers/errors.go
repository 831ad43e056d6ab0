package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	bookingRepo "reservo/database/repository/booking"
	"reservo/services/booking"
)

// writeDomainError maps booking pipeline errors onto HTTP responses.
// Conflicts carry their alternatives and throttles carry Retry-After so
// callers can act without a follow-up request.
func writeDomainError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		pastDate     *booking.PastDateError
		slotConflict *booking.SlotConflictError
		seriesErr    *booking.SeriesConflictError
		capacity     *booking.CapacityExceededError
		rateLimit    *booking.RateLimitExceededError
		declined     *booking.PaymentDeclinedError
	)

	switch {
	case errors.As(err, &pastDate):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "requested start time is in the past",
			"start": pastDate.Start,
		})
	case errors.As(err, &slotConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":        "requested slot conflicts with existing bookings",
			"overlapping":  slotConflict.OverlappingIDs,
			"alternatives": slotConflict.SuggestedAlternatives,
		})
	case errors.As(err, &seriesErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":              "recurring series conflicts with existing bookings",
			"conflictingIndices": seriesErr.ConflictingIndices,
		})
	case errors.As(err, &capacity):
		retry := int(capacity.RetryAfter.Seconds())
		c.Header("Retry-After", strconv.Itoa(retry))
		c.JSON(http.StatusConflict, gin.H{
			"error":             "provider is fully booked for that day",
			"capacity":          capacity.Capacity,
			"retryAfterSeconds": retry,
		})
	case errors.As(err, &rateLimit):
		retry := int(rateLimit.RetryAfter.Seconds())
		c.Header("Retry-After", strconv.Itoa(retry))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "request budget exceeded",
			"limit":             rateLimit.Limit,
			"retryAfterSeconds": retry,
		})
	case errors.As(err, &declined):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "payment was declined",
			"bookingId": declined.BookingID,
			"reason":    declined.Reason,
		})
	case errors.Is(err, bookingRepo.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, booking.ErrProviderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "provider not found"})
	default:
		logger.Error("unhandled booking error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
