package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func adminRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminKey(key))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAdminKeyRequired(t *testing.T) {
	r := adminRouter("secreto")

	req, _ := http.NewRequest(http.MethodPost, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key must be rejected, got %d", w.Code)
	}

	req, _ = http.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("X-Admin-Key", "secreto")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("valid key must pass, got %d", w.Code)
	}
}

func TestAdminKeyDisabledWhenEmpty(t *testing.T) {
	r := adminRouter("")
	req, _ := http.NewRequest(http.MethodPost, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("empty configured key disables the gate, got %d", w.Code)
	}
}
