// Package kpi holds the pure KPI math: the per-conversation close-time
// calculation and the calendar-day aggregation. Nothing here touches storage.
package kpi

import (
	"errors"
	"fmt"
	"time"

	"github.com/fibernet/kpicore/internal/models"
)

// ErrMissingRequiredField marks a record too malformed to measure. The record
// is excluded and flagged for manual review; it never aborts a whole run.
var ErrMissingRequiredField = errors.New("missing required field")

// Medidas are the derived KPI fields frozen onto a conversation when it
// closes.
type Medidas struct {
	FRTSeg *float64
	TTRMin float64
	FCR    bool
}

// CalcularCierre derives FRT, TTR and FCR for a closing conversation.
//
// FRT is the delta from start to the first agent message; with no agent
// message it stays null, never zero. FCR holds iff the resolution category is
// resuelta_ia and no technician notification was logged. CSAT is not derived
// here: the survey answer arrives later and is merely stored.
func CalcularCierre(conv models.Conversacion, mensajes []models.Mensaje, acciones []models.Accion, categoria string, cerradaEn time.Time) (Medidas, error) {
	if conv.IniciadaEn.IsZero() {
		return Medidas{}, fmt.Errorf("%w: iniciada_en on %s", ErrMissingRequiredField, conv.ID)
	}
	if cerradaEn.Before(conv.IniciadaEn) {
		return Medidas{}, fmt.Errorf("%w: cierre %s anterior al inicio de %s", ErrMissingRequiredField, cerradaEn.Format(time.RFC3339), conv.ID)
	}

	m := Medidas{
		TTRMin: cerradaEn.Sub(conv.IniciadaEn).Minutes(),
		FCR:    categoria == models.ResolucionIA && !tieneNotificacionTecnico(acciones),
	}
	if primera, ok := primeraRespuestaAgente(conv.IniciadaEn, mensajes); ok {
		frt := primera.Sub(conv.IniciadaEn).Seconds()
		m.FRTSeg = &frt
	}
	return m, nil
}

func primeraRespuestaAgente(inicio time.Time, mensajes []models.Mensaje) (time.Time, bool) {
	for _, msg := range mensajes {
		if msg.Rol != models.RolAgente {
			continue
		}
		if msg.EnviadoEn.Before(inicio) {
			continue
		}
		return msg.EnviadoEn, true
	}
	return time.Time{}, false
}

func tieneNotificacionTecnico(acciones []models.Accion) bool {
	for _, a := range acciones {
		if a.Tipo == models.AccionNotificarTecnico {
			return true
		}
	}
	return false
}
