package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/repolens/repolens/src/models"
	"github.com/repolens/repolens/src/repositories/mock"
	"github.com/repolens/repolens/src/services"
)

func guardedRouter(repo *mock.KeyRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequireAPIKey(services.NewKeyGuard(repo)))
	router.GET("/test", func(c *gin.Context) {
		auth, ok := GetAuthorization(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no authorization in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"usage":     auth.Usage,
			"limit":     auth.Limit,
			"remaining": auth.Remaining(),
		})
	})
	return router
}

func keyedRequest(secret string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if secret != "" {
		req.Header.Set(APIKeyHeader, secret)
	}
	return req
}

func TestRequireAPIKey_Authorized(t *testing.T) {
	repo := mock.NewKeyRepository()
	limit := 10
	key := repo.Add(models.APIKey{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Value:      "rl_dev_good",
		UsageLimit: &limit,
	})
	router := guardedRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, keyedRequest(key.Value))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["usage"] != float64(1) {
		t.Errorf("expected usage 1, got %v", response["usage"])
	}
	if response["remaining"] != float64(9) {
		t.Errorf("expected remaining 9, got %v", response["remaining"])
	}
}

func TestRequireAPIKey_MissingKey(t *testing.T) {
	router := guardedRouter(mock.NewKeyRepository())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, keyedRequest(""))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without key, got %d", w.Code)
	}
}

func TestRequireAPIKey_UnknownKey(t *testing.T) {
	router := guardedRouter(mock.NewKeyRepository())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, keyedRequest("rl_dev_unknown"))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown key, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["message"] != "Invalid API key. Please check your credentials and try again." {
		t.Errorf("unexpected message: %v", response["message"])
	}
}

func TestRequireAPIKey_RateLimited(t *testing.T) {
	repo := mock.NewKeyRepository()
	limit := 1
	key := repo.Add(models.APIKey{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Value:      "rl_dev_limited",
		UsageLimit: &limit,
	})
	router := guardedRouter(repo)

	// First call consumes the budget
	w := httptest.NewRecorder()
	router.ServeHTTP(w, keyedRequest(key.Value))
	if w.Code != http.StatusOK {
		t.Fatalf("expected first call to pass, got %d", w.Code)
	}

	// Second call is refused with the usage breakdown
	w = httptest.NewRecorder()
	router.ServeHTTP(w, keyedRequest(key.Value))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["usage"] != float64(2) {
		t.Errorf("expected usage 2, got %v", response["usage"])
	}
	if response["limit"] != float64(1) {
		t.Errorf("expected limit 1, got %v", response["limit"])
	}
	if response["remaining"] != float64(0) {
		t.Errorf("expected remaining 0, got %v", response["remaining"])
	}
}

func TestRequireAPIKey_StoreFault(t *testing.T) {
	repo := mock.NewKeyRepository()
	repo.FindByValueFunc = func(ctx context.Context, value string) (*models.APIKey, error) {
		return nil, errors.New("connection refused")
	}
	router := guardedRouter(repo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, keyedRequest("rl_dev_whatever"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for storage fault, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["message"] != "Error validating API key" {
		t.Errorf("unexpected message: %v", response["message"])
	}
}
