package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Preflight is answered without reaching a handler.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/ping", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected preflight status 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard allow-origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Errorf("expected DELETE in allowed methods, got %q", got)
	}

	// Normal requests pass through with the headers set.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "pong" {
		t.Errorf("expected handler response, got status %d body %q", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected allow-origin on normal responses, got %q", got)
	}
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestSizeLimitMiddleware(32))
	router.POST("/echo", func(c *gin.Context) {
		var v interface{}
		if err := c.ShouldBindJSON(&v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, v)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"ok":true}`))
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected small body to pass, got %d", w.Code)
	}

	big := `{"padding":"` + strings.Repeat("x", 64) + `"}`
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/echo", strings.NewReader(big))
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected oversized body to be rejected, got %d", w.Code)
	}
}
