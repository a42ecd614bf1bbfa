package kpi

import (
	"errors"
	"testing"
	"time"

	"github.com/fibernet/kpicore/internal/models"
)

var inicio = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func TestCalcularCierreFRTYTTR(t *testing.T) {
	conv := models.Conversacion{ID: "c1", IniciadaEn: inicio}
	mensajes := []models.Mensaje{
		{Rol: models.RolCliente, EnviadoEn: inicio},
		{Rol: models.RolAgente, EnviadoEn: inicio.Add(45 * time.Second)},
		{Rol: models.RolAgente, EnviadoEn: inicio.Add(90 * time.Second)},
	}

	m, err := CalcularCierre(conv, mensajes, nil, models.ResolucionIA, inicio.Add(12*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.FRTSeg == nil || *m.FRTSeg != 45 {
		t.Fatalf("expected FRT 45s, got %v", m.FRTSeg)
	}
	if m.TTRMin != 12 {
		t.Fatalf("expected TTR 12min, got %v", m.TTRMin)
	}
}

func TestCalcularCierreSinRespuestaAgente(t *testing.T) {
	conv := models.Conversacion{ID: "c1", IniciadaEn: inicio}
	mensajes := []models.Mensaje{
		{Rol: models.RolCliente, EnviadoEn: inicio},
		{Rol: models.RolSistema, EnviadoEn: inicio.Add(time.Second)},
	}

	m, err := CalcularCierre(conv, mensajes, nil, models.ResolucionVisita, inicio.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.FRTSeg != nil {
		t.Fatalf("expected null FRT without agent reply, got %v", *m.FRTSeg)
	}
}

func TestCalcularCierreFCR(t *testing.T) {
	conv := models.Conversacion{ID: "c1", IniciadaEn: inicio}

	m, err := CalcularCierre(conv, nil, nil, models.ResolucionIA, inicio.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.FCR {
		t.Fatalf("expected FCR for resuelta_ia without technician notification")
	}

	acciones := []models.Accion{{Tipo: models.AccionNotificarTecnico}}
	m, err = CalcularCierre(conv, nil, acciones, models.ResolucionIA, inicio.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.FCR {
		t.Fatalf("technician notification must break FCR")
	}

	m, err = CalcularCierre(conv, nil, nil, models.ResolucionVisita, inicio.Add(time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.FCR {
		t.Fatalf("visita_tecnica must not count as FCR")
	}
}

func TestCalcularCierreRegistroMalformado(t *testing.T) {
	_, err := CalcularCierre(models.Conversacion{ID: "c1"}, nil, nil, models.ResolucionIA, inicio)
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField for zero start, got %v", err)
	}

	conv := models.Conversacion{ID: "c1", IniciadaEn: inicio}
	_, err = CalcularCierre(conv, nil, nil, models.ResolucionIA, inicio.Add(-time.Minute))
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField for close before start, got %v", err)
	}
}
