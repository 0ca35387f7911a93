package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/repolens/repolens/src/middleware"
	"github.com/repolens/repolens/src/models"
	"github.com/repolens/repolens/src/repositories"
	"github.com/repolens/repolens/src/services"
	"github.com/rs/zerolog/log"
)

// KeyStore is the key access the dashboard handlers need: the repository
// operations plus server-side key issuance.
type KeyStore interface {
	repositories.KeyRepository
	CreateKey(ctx context.Context, ownerID uuid.UUID, name string, env models.Environment, usageLimit *int) (*models.APIKey, error)
}

// KeysHandler handles the session-authenticated key management endpoints.
// Every operation is scoped to the owner resolved by the session middleware;
// a key belonging to another user is indistinguishable from a missing one.
type KeysHandler struct {
	keys KeyStore
}

// NewKeysHandler creates a new keys handler
func NewKeysHandler(keys KeyStore) *KeysHandler {
	return &KeysHandler{keys: keys}
}

// CreateKeyRequest represents a key creation request
type CreateKeyRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Environment string `json:"environment" binding:"omitempty,oneof=development production"`
	UsageLimit  *int   `json:"usage_limit" binding:"omitempty,gt=0"`
}

// UpdateKeyRequest represents a key rename request. Only the display name is
// mutable; value and environment are fixed at creation.
type UpdateKeyRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// requireOwner resolves the session owner or answers 401
func requireOwner(c *gin.Context) (uuid.UUID, bool) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Unauthorized: You must be signed in to access this endpoint",
		})
		return uuid.Nil, false
	}
	return ownerID, true
}

// parseKeyID parses the :id path parameter or answers 400
func parseKeyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid API key ID"})
		return uuid.Nil, false
	}
	return id, true
}

// HandleListKeys handles GET /api/keys
func (h *KeysHandler) HandleListKeys(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	keys, err := h.keys.ListByOwner(ctx, ownerID)
	if err != nil {
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("failed to list API keys")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API keys"})
		return
	}

	if keys == nil {
		keys = []models.APIKey{}
	}
	c.JSON(http.StatusOK, keys)
}

// HandleCreateKey handles POST /api/keys
func (h *KeysHandler) HandleCreateKey(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "API key name is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	key, err := h.keys.CreateKey(ctx, ownerID, req.Name, models.Environment(req.Environment), req.UsageLimit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEnvironment) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "environment must be development or production"})
			return
		}
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("failed to create API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		return
	}

	c.JSON(http.StatusCreated, key)
}

// HandleGetKey handles GET /api/keys/:id
func (h *KeysHandler) HandleGetKey(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	id, ok := parseKeyID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	key, err := h.keys.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, services.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("failed to fetch API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch API key"})
		return
	}

	c.JSON(http.StatusOK, key)
}

// HandleUpdateKey handles PUT /api/keys/:id
func (h *KeysHandler) HandleUpdateKey(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	id, ok := parseKeyID(c)
	if !ok {
		return
	}

	var req UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "API key name is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	key, err := h.keys.Rename(ctx, id, ownerID, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("failed to update API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update API key"})
		return
	}

	c.JSON(http.StatusOK, key)
}

// HandleDeleteKey handles DELETE /api/keys/:id
func (h *KeysHandler) HandleDeleteKey(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	id, ok := parseKeyID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.keys.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, services.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("failed to delete API key")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete API key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deleted"})
}
