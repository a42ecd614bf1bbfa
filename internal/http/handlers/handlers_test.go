package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

func testHandler() *Handler {
	gin.SetMode(gin.TestMode)
	return &Handler{Validator: validator.New(), Logger: zerolog.Nop()}
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConversacionCrearValidacion(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/api/conversaciones", h.ConversacionCrear)

	w := postJSON(t, r, "/api/conversaciones", `{"contrato":"CT-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing telefono must fail validation, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "VALIDATION_ERROR") {
		t.Fatalf("expected error envelope, got %s", w.Body.String())
	}
}

func TestCierreValidaCategoria(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/api/conversaciones/:id/cerrar", h.ConversacionCerrar)

	w := postJSON(t, r, "/api/conversaciones/c1/cerrar", `{"categoria_resolucion":"otra_cosa"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown resolution category must fail, got %d", w.Code)
	}
}

func TestCSATValidaRango(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/api/conversaciones/:id/csat", h.CSATRegistrar)

	w := postJSON(t, r, "/api/conversaciones/c1/csat", `{"puntaje":6}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("CSAT outside 1..5 must fail, got %d", w.Code)
	}
}

func TestKPIDiarioGetFechaInvalida(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.GET("/api/kpis/diarios/:fecha", h.KPIDiarioGet)

	req, _ := http.NewRequest(http.MethodGet, "/api/kpis/diarios/ayer", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("non-date path must fail, got %d", w.Code)
	}
}

func TestValidarValor(t *testing.T) {
	if err := validarValor("entero", "15"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validarValor("entero", "quince"); err == nil {
		t.Fatalf("expected mismatch for non-integer value")
	}
	if err := validarValor("decimal", "4.5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validarValor("booleano", "true"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validarValor("json", `{"a":1}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validarValor("json", "{"); err == nil {
		t.Fatalf("expected mismatch for broken json")
	}
	if err := validarValor("texto", "lo que sea"); err != nil {
		t.Fatalf("text accepts anything: %v", err)
	}
}
