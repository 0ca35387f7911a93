package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/repolens/repolens/src/database"
)

func TestHandleHealth_Success(t *testing.T) {
	tdb := database.NewTestDB(t)

	gin.SetMode(gin.TestMode)
	w, c := createTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	handler := NewHealthHandler(database.NewDatabaseFromPool(tdb.Pool))
	handler.HandleHealth(c)

	assertStatusCode(t, w, http.StatusOK)
	response := decodeJSON(t, w)
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", response["status"])
	}
	if response["database"] != "connected" {
		t.Errorf("expected database 'connected', got %v", response["database"])
	}
	if _, ok := response["db_latency"]; !ok {
		t.Error("expected db_latency field")
	}
	if _, ok := response["uptime"]; !ok {
		t.Error("expected uptime field")
	}
}

func TestHandleHealth_DBError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w, c := createTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	handler := NewHealthHandler(database.NewDatabaseFromPool(nil))
	handler.HandleHealth(c)

	assertStatusCode(t, w, http.StatusServiceUnavailable)
	response := decodeJSON(t, w)
	if response["status"] != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %v", response["status"])
	}
}

func TestHandleInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w, c := createTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/info", nil)

	handler := NewHealthHandler(database.NewDatabaseFromPool(nil))
	handler.HandleInfo(c)

	assertStatusCode(t, w, http.StatusOK)
	response := decodeJSON(t, w)
	if response["service"] != "repolens" {
		t.Errorf("expected service 'repolens', got %v", response["service"])
	}
}

func TestHandleReady_DBError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w, c := createTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

	handler := NewHealthHandler(database.NewDatabaseFromPool(nil))
	handler.HandleReady(c)

	assertStatusCode(t, w, http.StatusServiceUnavailable)
	response := decodeJSON(t, w)
	if response["ready"] != false {
		t.Errorf("expected ready false, got %v", response["ready"])
	}
}
