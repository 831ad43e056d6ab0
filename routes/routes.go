package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"reservo/handlers"
	"reservo/services/realtime"
	"reservo/utils"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Booking  *handlers.BookingHandler
	Provider *handlers.ProviderHandler
	WS       *realtime.WSHandler
	Health   *utils.HealthMonitor
}

// RegisterBookingRoutes sets up the endpoints for the reservation engine.
func RegisterBookingRoutes(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/bookings")
	{
		api.POST("", h.Booking.CreateBooking)
		api.POST("/series", h.Booking.CreateSeries)
		api.DELETE("/:id", h.Booking.CancelBooking)
	}
}

// RegisterProviderRoutes registers provider management endpoints.
func RegisterProviderRoutes(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/providers")
	{
		api.POST("", h.Provider.RegisterProvider)
		api.GET("/:id", h.Provider.GetProvider)
		api.GET("/:id/availability", h.Booking.GetAvailability)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, h *Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": h.Health.Status()})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, h *Handlers) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterBookingRoutes(r, h)
	RegisterProviderRoutes(r, h)
	RegisterHealthRoute(r, h)
	r.GET("/ws", h.WS.Attach)
}
