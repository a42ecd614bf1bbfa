package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/fibernet/kpicore/internal/models"
	"github.com/fibernet/kpicore/internal/settings"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func umbralesCompletos() Umbrales {
	return Umbrales{
		FRTSeg:        fptr(60),
		TTRTier1Min:   fptr(15),
		TTRTier2Min:   fptr(240),
		FCRPorcentaje: fptr(70),
		CSATMinimo:    fptr(4),
	}
}

func TestVerificarConversacionFRTExcedido(t *testing.T) {
	conv := models.Conversacion{
		ID:                  "c1",
		FRTSeg:              fptr(90),
		TTRMin:              fptr(10),
		CategoriaResolucion: sptr(models.ResolucionIA),
	}
	checks := VerificarConversacion(conv, umbralesCompletos())
	if len(checks) != 2 {
		t.Fatalf("expected FRT and TTR checks, got %d", len(checks))
	}
	if checks[0].Tipo != models.AlertaFRTExcedido || !checks[0].Excedido {
		t.Fatalf("FRT 90s over 60s target must be exceeded: %+v", checks[0])
	}
	if checks[1].Tipo != models.AlertaTTRExcedido || checks[1].Excedido {
		t.Fatalf("TTR 10min under tier-1 15min must pass: %+v", checks[1])
	}
}

func TestVerificarConversacionTierPorCategoria(t *testing.T) {
	conv := models.Conversacion{
		ID:                  "c1",
		TTRMin:              fptr(120),
		CategoriaResolucion: sptr(models.ResolucionVisita),
	}
	checks := VerificarConversacion(conv, umbralesCompletos())
	if len(checks) != 1 {
		t.Fatalf("expected only the TTR check, got %d", len(checks))
	}
	// 120min breaks tier 1 but a truck roll gets the 240min target.
	if checks[0].Excedido {
		t.Fatalf("visita_tecnica must be judged against tier 2: %+v", checks[0])
	}
}

func TestVerificarConversacionSinFRT(t *testing.T) {
	conv := models.Conversacion{ID: "c1"}
	if checks := VerificarConversacion(conv, umbralesCompletos()); len(checks) != 0 {
		t.Fatalf("null measurements produce no checks, got %+v", checks)
	}
}

func TestVerificarConversacionUmbralFaltante(t *testing.T) {
	conv := models.Conversacion{ID: "c1", FRTSeg: fptr(500)}
	if checks := VerificarConversacion(conv, Umbrales{}); len(checks) != 0 {
		t.Fatalf("missing thresholds skip their checks, got %+v", checks)
	}
}

func TestVerificarDia(t *testing.T) {
	k := models.KPIDiario{
		Fecha:         "2025-03-10",
		FCRPorcentaje: fptr(55),
		CSATPromedio:  fptr(4.5),
	}
	checks := VerificarDia(k, umbralesCompletos())
	if len(checks) != 2 {
		t.Fatalf("expected FCR and CSAT checks, got %d", len(checks))
	}
	if checks[0].Tipo != models.AlertaFCRBajo || !checks[0].Excedido {
		t.Fatalf("FCR 55%% under the 70%% floor must breach: %+v", checks[0])
	}
	if checks[1].Tipo != models.AlertaCSATBajo || checks[1].Excedido {
		t.Fatalf("CSAT 4.5 over the 4.0 floor must pass: %+v", checks[1])
	}
}

func TestVerificarDiaSinDatos(t *testing.T) {
	k := models.KPIDiario{Fecha: "2025-03-10"}
	if checks := VerificarDia(k, umbralesCompletos()); len(checks) != 0 {
		t.Fatalf("a day with null rates has nothing to check, got %+v", checks)
	}
}

// ── Evaluator against an in-memory alert store ──

type cfgStub map[string]models.Configuracion

func (m cfgStub) GetConfiguracion(_ context.Context, clave string) (models.Configuracion, error) {
	c, ok := m[clave]
	if !ok {
		return models.Configuracion{}, pgx.ErrNoRows
	}
	return c, nil
}

func stubSettings() *settings.Service {
	entero := func(clave, valor string) models.Configuracion {
		return models.Configuracion{Clave: clave, Tipo: settings.TipoEntero, Valor: valor}
	}
	return settings.New(cfgStub{
		settings.ClaveSLAFRT:        entero(settings.ClaveSLAFRT, "60"),
		settings.ClaveSLATTRTier1:   entero(settings.ClaveSLATTRTier1, "15"),
		settings.ClaveSLATTRTier2:   entero(settings.ClaveSLATTRTier2, "240"),
		settings.ClaveAlarmaMasiva:  entero(settings.ClaveAlarmaMasiva, "3"),
		settings.ClaveVentanaMasiva: entero(settings.ClaveVentanaMasiva, "15"),
		settings.ClaveTimezone:      {Clave: settings.ClaveTimezone, Tipo: settings.TipoTexto, Valor: "UTC"},
	})
}

type stubAlertStore struct {
	abiertas  map[string]models.AlertaSLA
	creadas   int
	resueltas int
	fallas    []string
	marcadas  []string
	cerradas  []models.Conversacion
}

func newStubAlertStore() *stubAlertStore {
	return &stubAlertStore{abiertas: map[string]models.AlertaSLA{}}
}

func claveAlerta(tipo string, conversacionID *string) string {
	if conversacionID == nil {
		return tipo
	}
	return tipo + "|" + *conversacionID
}

func (s *stubAlertStore) CrearAlertaSiNoExiste(_ context.Context, a models.AlertaSLA) (bool, error) {
	k := claveAlerta(a.Tipo, a.ConversacionID)
	if _, ok := s.abiertas[k]; ok {
		return false, nil
	}
	s.abiertas[k] = a
	s.creadas++
	return true, nil
}

func (s *stubAlertStore) ResolverAlertaAbierta(_ context.Context, tipo string, conversacionID *string) (bool, error) {
	k := claveAlerta(tipo, conversacionID)
	if _, ok := s.abiertas[k]; !ok {
		return false, nil
	}
	delete(s.abiertas, k)
	s.resueltas++
	return true, nil
}

func (s *stubAlertStore) AbiertasConFallaDesde(_ context.Context, _ time.Time) ([]string, error) {
	return s.fallas, nil
}

func (s *stubAlertStore) MarcarFallaMasiva(_ context.Context, ids []string) (int64, error) {
	s.marcadas = ids
	return int64(len(ids)), nil
}

func (s *stubAlertStore) ListCerradasEntre(_ context.Context, _, _ time.Time) ([]models.Conversacion, error) {
	return s.cerradas, nil
}

func stubEvaluator(store *stubAlertStore) *Evaluator {
	return &Evaluator{Store: store, Settings: stubSettings(), Logger: zerolog.Nop()}
}

func TestEvaluarConversacionDeduplica(t *testing.T) {
	store := newStubAlertStore()
	e := stubEvaluator(store)
	conv := models.Conversacion{ID: "c1", FRTSeg: fptr(90)}

	if err := e.EvaluarConversacion(context.Background(), conv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.EvaluarConversacion(context.Background(), conv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.creadas != 1 || len(store.abiertas) != 1 {
		t.Fatalf("re-evaluating the same breach must not duplicate the alert: creadas=%d abiertas=%d", store.creadas, len(store.abiertas))
	}
}

func TestEvaluarConversacionesDiaAutoResuelve(t *testing.T) {
	store := newStubAlertStore()
	e := stubEvaluator(store)

	breached := models.Conversacion{ID: "c1", FRTSeg: fptr(90)}
	if err := e.EvaluarConversacion(context.Background(), breached); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.abiertas) != 1 {
		t.Fatalf("expected one open alert, got %d", len(store.abiertas))
	}

	// The record gets corrected; the daily pass re-checks it.
	store.cerradas = []models.Conversacion{{ID: "c1", FRTSeg: fptr(30)}}
	if err := e.EvaluarConversacionesDia(context.Background(), "2025-03-10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.abiertas) != 0 || store.resueltas != 1 {
		t.Fatalf("back-in-threshold re-check must retire the alert: abiertas=%d resueltas=%d", len(store.abiertas), store.resueltas)
	}
}

func TestEvaluarFallaMasiva(t *testing.T) {
	store := newStubAlertStore()
	store.fallas = []string{"c1", "c2", "c3"}
	e := stubEvaluator(store)

	breach, err := e.EvaluarFallaMasiva(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !breach {
		t.Fatalf("3 affected conversations at threshold 3 must breach")
	}
	if store.creadas != 1 {
		t.Fatalf("expected exactly one aggregate alert, got %d", store.creadas)
	}
	if len(store.marcadas) != 3 {
		t.Fatalf("affected conversations must be re-tagged, got %v", store.marcadas)
	}

	// Same outage on the next pass: still one alert, never one per customer.
	if _, err := e.EvaluarFallaMasiva(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.creadas != 1 {
		t.Fatalf("ongoing outage must not raise a second alert, got %d", store.creadas)
	}
}

func TestEvaluarFallaMasivaBajoUmbral(t *testing.T) {
	store := newStubAlertStore()
	store.fallas = []string{"c1", "c2", "c3"}
	e := stubEvaluator(store)

	if _, err := e.EvaluarFallaMasiva(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.fallas = []string{"c1"}
	breach, err := e.EvaluarFallaMasiva(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if breach {
		t.Fatalf("one affected conversation must not breach threshold 3")
	}
	if len(store.abiertas) != 0 || store.resueltas != 1 {
		t.Fatalf("subsiding outage must auto-resolve the aggregate alert: abiertas=%d resueltas=%d", len(store.abiertas), store.resueltas)
	}
}
