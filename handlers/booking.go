package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reservo/models"
	"reservo/services/booking"
)

// BookingHandler exposes the reservation pipeline over HTTP.
type BookingHandler struct {
	Service booking.BookingService
	Logger  *zap.Logger
}

func NewBookingHandler(svc booking.BookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Service: svc, Logger: logger}
}

// CreateBooking reserves a single slot and settles payment for it.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if req.Series != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recurring requests must use the series endpoint"})
		return
	}

	b, err := h.Service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		writeDomainError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": b})
}

// CreateSeries reserves a recurring series atomically.
func (h *BookingHandler) CreateSeries(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if req.Series == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "series specification is required"})
		return
	}

	series, bookings, err := h.Service.CreateSeries(c.Request.Context(), req)
	if err != nil {
		writeDomainError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"series": series, "bookings": bookings})
}

// CancelBooking releases a booking's slot. Cancelling an already cancelled
// booking succeeds without side effects.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID := c.Param("id")
	actorID := c.Query("client_id")

	if err := h.Service.Cancel(c.Request.Context(), bookingID, actorID); err != nil {
		writeDomainError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "bookingId": bookingID})
}

// GetAvailability returns the free and occupied slots for a provider's day.
func (h *BookingHandler) GetAvailability(c *gin.Context) {
	providerID := c.Param("id")
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter must be YYYY-MM-DD"})
		return
	}

	result, err := h.Service.Availability(c.Request.Context(), providerID, day)
	if err != nil {
		writeDomainError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
