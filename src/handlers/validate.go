package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repolens/repolens/src/middleware"
	"github.com/repolens/repolens/src/services"
	"github.com/rs/zerolog/log"
)

// ValidateHandler handles the key playground's validation endpoint.
// It probes for existence only and never touches usage accounting.
type ValidateHandler struct {
	guard *services.KeyGuard
}

// NewValidateHandler creates a new validate handler
func NewValidateHandler(guard *services.KeyGuard) *ValidateHandler {
	return &ValidateHandler{guard: guard}
}

// ValidateKeyRequest represents a key validation request
type ValidateKeyRequest struct {
	Key string `json:"key"`
}

// HandleValidateKey handles POST /api/validate-key
func (h *ValidateHandler) HandleValidateKey(c *gin.Context) {
	var req ValidateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid":   false,
			"message": "No API key provided",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	valid, err := h.guard.CheckKey(ctx, req.Key)
	if err != nil {
		if errors.Is(err, services.ErrMissingKey) {
			c.JSON(http.StatusBadRequest, gin.H{
				"valid":   false,
				"message": "No API key provided",
			})
			return
		}
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("failed to validate API key")
		c.JSON(http.StatusInternalServerError, gin.H{
			"valid":   false,
			"message": "Error validating API key",
		})
		return
	}

	message := "API key is valid"
	if !valid {
		message = "Invalid API key"
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":   valid,
		"message": message,
	})
}
