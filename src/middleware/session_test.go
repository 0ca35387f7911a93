package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/repolens/repolens/src/models"
	"github.com/repolens/repolens/src/services"
)

func sessionRouter(t *testing.T, as *services.AuthService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SessionAuthMiddleware(as))
	router.GET("/test", func(c *gin.Context) {
		ownerID, ok := GetOwnerID(c)
		if !ok {
			t.Error("expected owner id in context")
		}
		c.JSON(http.StatusOK, gin.H{"owner_id": ownerID.String()})
	})
	return router
}

func newTestAuthService(t *testing.T) *services.AuthService {
	t.Helper()
	as, err := services.NewAuthService(nil, "0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}
	return as
}

func TestSessionAuth_CookieToken(t *testing.T) {
	as := newTestAuthService(t)
	router := sessionRouter(t, as)

	token, err := as.GenerateSessionToken(&models.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with cookie token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSessionAuth_BearerToken(t *testing.T) {
	as := newTestAuthService(t)
	router := sessionRouter(t, as)

	token, err := as.GenerateSessionToken(&models.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with bearer token, got %d", w.Code)
	}
}

func TestSessionAuth_NoToken(t *testing.T) {
	router := sessionRouter(t, newTestAuthService(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}

func TestSessionAuth_InvalidToken(t *testing.T) {
	router := sessionRouter(t, newTestAuthService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", w.Code)
	}
}
