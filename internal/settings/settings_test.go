package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/fibernet/kpicore/internal/models"
)

type memGetter map[string]models.Configuracion

func (m memGetter) GetConfiguracion(_ context.Context, clave string) (models.Configuracion, error) {
	c, ok := m[clave]
	if !ok {
		return models.Configuracion{}, pgx.ErrNoRows
	}
	return c, nil
}

func TestIntYFloat(t *testing.T) {
	s := New(memGetter{
		"sla_frt_seg":       {Clave: "sla_frt_seg", Tipo: TipoEntero, Valor: "60"},
		"sla_csat_minimo":   {Clave: "sla_csat_minimo", Tipo: TipoDecimal, Valor: "4.0"},
	})

	v, err := s.Int(context.Background(), "sla_frt_seg")
	if err != nil || v != 60 {
		t.Fatalf("expected 60, got %d (%v)", v, err)
	}
	f, err := s.Float(context.Background(), "sla_csat_minimo")
	if err != nil || f != 4.0 {
		t.Fatalf("expected 4.0, got %v (%v)", f, err)
	}
}

func TestFloatAceptaEntero(t *testing.T) {
	s := New(memGetter{
		"sla_ttr_tier1_min": {Clave: "sla_ttr_tier1_min", Tipo: TipoEntero, Valor: "15"},
	})
	f, err := s.Float(context.Background(), "sla_ttr_tier1_min")
	if err != nil || f != 15 {
		t.Fatalf("an integer setting is a valid decimal threshold: %v (%v)", f, err)
	}
}

func TestClaveFaltante(t *testing.T) {
	s := New(memGetter{})
	_, err := s.Int(context.Background(), "sla_frt_seg")
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestTipoIncorrecto(t *testing.T) {
	s := New(memGetter{
		"sla_frt_seg": {Clave: "sla_frt_seg", Tipo: TipoTexto, Valor: "sesenta"},
	})
	_, err := s.Int(context.Background(), "sla_frt_seg")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch on declared kind, got %v", err)
	}
}

func TestValorCorrupto(t *testing.T) {
	s := New(memGetter{
		"sla_frt_seg": {Clave: "sla_frt_seg", Tipo: TipoEntero, Valor: "no-numero"},
	})
	_, err := s.Int(context.Background(), "sla_frt_seg")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch on unparsable value, got %v", err)
	}
}

func TestLocation(t *testing.T) {
	s := New(memGetter{
		"timezone_reporte": {Clave: "timezone_reporte", Tipo: TipoTexto, Valor: "America/Bogota"},
	})
	loc, err := s.Location(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "America/Bogota" {
		t.Fatalf("expected America/Bogota, got %s", loc)
	}
}

func TestDefaultsCubrenLasClavesDelMotor(t *testing.T) {
	claves := map[string]bool{}
	for _, d := range Defaults() {
		claves[d.Clave] = true
	}
	for _, c := range []string{
		ClaveSLAFRT, ClaveSLATTRTier1, ClaveSLATTRTier2, ClaveSLAFCR, ClaveSLACSAT,
		ClaveAlarmaMasiva, ClaveVentanaMasiva, ClaveTimezone, ClaveCostoPor1K,
	} {
		if !claves[c] {
			t.Fatalf("default seed is missing %s", c)
		}
	}
}
