package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repolens/repolens/src/middleware"
	"github.com/repolens/repolens/src/repositories"
	"github.com/repolens/repolens/src/services"
	"github.com/rs/zerolog/log"
)

// stateCookieName binds the login redirect to its callback
const stateCookieName = "oauth_state"

// AuthHandler handles identity-provider sign-in and session lifecycle
type AuthHandler struct {
	authService  *services.AuthService
	users        repositories.UserRepository
	dashboardURL string
	secureCookie bool
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *services.AuthService, users repositories.UserRepository, dashboardURL string, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		users:        users,
		dashboardURL: dashboardURL,
		secureCookie: secureCookie,
	}
}

// HandleLogin handles GET /auth/login - redirect to the identity provider
func (h *AuthHandler) HandleLogin(c *gin.Context) {
	state, err := h.authService.GenerateState()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate login state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start sign-in"})
		return
	}

	c.SetCookie(stateCookieName, state, int((10 * time.Minute).Seconds()), "/", "", h.secureCookie, true)
	c.Redirect(http.StatusFound, h.authService.AuthCodeURL(state))
}

// HandleCallback handles GET /auth/callback - complete the sign-in
func (h *AuthHandler) HandleCallback(c *gin.Context) {
	state := c.Query("state")
	cookieState, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || state != cookieState {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sign-in state"})
		return
	}
	// State is single-use
	c.SetCookie(stateCookieName, "", -1, "/", "", h.secureCookie, true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	user, err := h.authService.HandleCallback(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("sign-in callback failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Failed to authenticate user"})
		return
	}

	sessionToken, err := h.authService.GenerateSessionToken(user)
	if err != nil {
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.SetCookie(middleware.SessionCookieName, sessionToken, int((24 * time.Hour).Seconds()), "/", "", h.secureCookie, true)

	log.Info().Str("email", user.Email).Msg("user signed in")
	c.Redirect(http.StatusFound, h.dashboardURL)
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(c *gin.Context) {
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// HandleMe handles GET /api/me - the signed-in user's profile
func (h *AuthHandler) HandleMe(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	user, err := h.users.GetByID(ctx, ownerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}
