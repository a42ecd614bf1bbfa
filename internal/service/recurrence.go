package service

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fibernet/kpicore/internal/db"
	"github.com/fibernet/kpicore/internal/models"
)

const (
	// VentanaRecurrencia is the trailing window evaluated per device serial.
	VentanaRecurrencia = 30 * 24 * time.Hour
	// UmbralProblematico is the failure count at which a device is flagged.
	UmbralProblematico = 3
)

// ResumirFallas groups failure events inside the trailing window by serial
// and derives the per-device summary. Output is ordered by failure count
// descending, ties broken by most recent failure descending.
func ResumirFallas(eventos []models.FallaONT, ahora time.Time) []models.DispositivoProblema {
	corte := ahora.Add(-VentanaRecurrencia)
	porSerial := map[string]*models.DispositivoProblema{}
	senales := map[string][]float64{}

	for _, f := range eventos {
		if f.DetectadaEn.Before(corte) || f.DetectadaEn.After(ahora) {
			continue
		}
		d, ok := porSerial[f.SerialONT]
		if !ok {
			d = &models.DispositivoProblema{SerialONT: f.SerialONT}
			porSerial[f.SerialONT] = d
		}
		d.Fallas++
		if f.Contrato != nil {
			d.Contrato = f.Contrato
		}
		if f.ResueltoConReboot {
			d.RebootsExitosos++
		}
		if f.RequirioVisita {
			d.VisitasRequeridas++
		}
		if f.SenalDbm != nil {
			senales[f.SerialONT] = append(senales[f.SerialONT], *f.SenalDbm)
		}
		if f.DetectadaEn.After(d.UltimaFalla) {
			d.UltimaFalla = f.DetectadaEn
		}
	}

	out := make([]models.DispositivoProblema, 0, len(porSerial))
	for serial, d := range porSerial {
		if vals := senales[serial]; len(vals) > 0 {
			var suma float64
			for _, v := range vals {
				suma += v
			}
			prom := suma / float64(len(vals))
			d.SenalPromedio = &prom
		}
		d.Problematico = d.Fallas >= UmbralProblematico
		out = append(out, *d)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Fallas == out[j].Fallas {
			return out[i].UltimaFalla.After(out[j].UltimaFalla)
		}
		return out[i].Fallas > out[j].Fallas
	})
	return out
}

// Detector is the read-side projection over the append-only failure log. It
// keeps no state of its own; every evaluation recomputes from the log.
type Detector struct {
	Store  *db.Store
	Logger zerolog.Logger
}

// Dispositivos lists every device with activity in the trailing window.
func (d *Detector) Dispositivos(ctx context.Context, ahora time.Time) ([]models.DispositivoProblema, error) {
	eventos, err := d.Store.ListFallasDesde(ctx, "", ahora.Add(-VentanaRecurrencia))
	if err != nil {
		return nil, err
	}
	return ResumirFallas(eventos, ahora), nil
}

// Revisar recomputes one serial's window after a new failure event. Events
// for different serials never contend.
func (d *Detector) Revisar(ctx context.Context, serial string, ahora time.Time) (models.DispositivoProblema, error) {
	eventos, err := d.Store.ListFallasDesde(ctx, serial, ahora.Add(-VentanaRecurrencia))
	if err != nil {
		return models.DispositivoProblema{}, err
	}
	resumen := ResumirFallas(eventos, ahora)
	if len(resumen) == 0 {
		return models.DispositivoProblema{SerialONT: serial}, nil
	}
	if resumen[0].Problematico {
		d.Logger.Warn().
			Str("serial_ont", serial).
			Int("fallas_30d", resumen[0].Fallas).
			Msg("device flagged as chronically failing")
	}
	return resumen[0], nil
}
