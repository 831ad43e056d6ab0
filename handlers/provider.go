package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reservo/models"
	"reservo/services/booking"
)

// ProviderHandler manages provider registration and lookup.
type ProviderHandler struct {
	Directory booking.ProviderDirectory
	Logger    *zap.Logger
}

func NewProviderHandler(dir booking.ProviderDirectory, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{Directory: dir, Logger: logger}
}

// RegisterProvider creates or replaces a provider's scheduling profile.
func (h *ProviderHandler) RegisterProvider(c *gin.Context) {
	var prov models.Provider
	if err := c.ShouldBindJSON(&prov); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}
	if prov.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider id is required"})
		return
	}
	if prov.Timezone != "" {
		if _, err := time.LoadLocation(prov.Timezone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone", "details": err.Error()})
			return
		}
	}

	if err := h.Directory.Register(c.Request.Context(), prov); err != nil {
		h.Logger.Error("provider registration failed",
			zap.String("provider_id", prov.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register provider"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"provider": prov})
}

// GetProvider returns a provider's scheduling profile.
func (h *ProviderHandler) GetProvider(c *gin.Context) {
	prov, err := h.Directory.GetProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": prov})
}
