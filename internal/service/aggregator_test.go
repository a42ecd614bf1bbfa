package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fibernet/kpicore/internal/models"
	"github.com/fibernet/kpicore/internal/settings"
)

type tzGetter string

func (g tzGetter) GetConfiguracion(_ context.Context, clave string) (models.Configuracion, error) {
	if clave != settings.ClaveTimezone {
		return models.Configuracion{}, pgx.ErrNoRows
	}
	return models.Configuracion{Clave: clave, Tipo: settings.TipoTexto, Valor: string(g)}, nil
}

func TestVentanaDia(t *testing.T) {
	s := settings.New(tzGetter("America/Bogota"))
	desde, hasta, err := VentanaDia(context.Background(), s, "2025-03-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasta.Sub(desde) != 24*time.Hour {
		t.Fatalf("expected a 24h window, got %v", hasta.Sub(desde))
	}
	// Bogota is UTC-5 year round: local midnight is 05:00 UTC.
	if desde.UTC() != time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC) {
		t.Fatalf("window must open at local midnight: %v", desde.UTC())
	}
}

func TestFechaEnCruceDeMedianoche(t *testing.T) {
	s := settings.New(tzGetter("America/Bogota"))
	// 03:00 UTC is still the previous calendar day in Bogota.
	fecha, err := FechaEn(context.Background(), s, time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fecha != "2025-03-10" {
		t.Fatalf("expected 2025-03-10 in Bogota, got %s", fecha)
	}
}

func TestVentanaDiaTimezoneInvalida(t *testing.T) {
	s := settings.New(tzGetter("Marte/Olympus"))
	if _, _, err := VentanaDia(context.Background(), s, "2025-03-10"); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}
