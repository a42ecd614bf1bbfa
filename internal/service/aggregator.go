package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/fibernet/kpicore/internal/db"
	"github.com/fibernet/kpicore/internal/kpi"
	"github.com/fibernet/kpicore/internal/metrics"
	"github.com/fibernet/kpicore/internal/models"
	"github.com/fibernet/kpicore/internal/settings"
)

// Aggregator produces the single rollup row for a calendar date from the
// conversations closed inside it. Re-running a date replaces the row; a day
// without data still gets its zero row.
type Aggregator struct {
	Store    *db.Store
	Settings *settings.Service
	Logger   zerolog.Logger
}

// VentanaDia resolves [start, end) of a calendar date in the configured
// reporting timezone. Every component derives day boundaries through here.
func VentanaDia(ctx context.Context, s *settings.Service, fecha string) (time.Time, time.Time, error) {
	loc, err := s.Location(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	desde, err := time.ParseInLocation("2006-01-02", fecha, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return desde, desde.AddDate(0, 0, 1), nil
}

// FechaEn formats an instant as a calendar date in the reporting timezone.
func FechaEn(ctx context.Context, s *settings.Service, t time.Time) (string, error) {
	loc, err := s.Location(ctx)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("2006-01-02"), nil
}

// RunFecha recomputes and stores the rollup for one date. Malformed records
// are excluded, flagged for manual review and counted; they never abort the
// run for the rest of the day's data.
func (a *Aggregator) RunFecha(ctx context.Context, fecha string) (models.KPIDiario, error) {
	inicio := time.Now()

	desde, hasta, err := VentanaDia(ctx, a.Settings, fecha)
	if err != nil {
		return models.KPIDiario{}, err
	}

	convs, err := a.Store.ListCerradasEntre(ctx, desde, hasta)
	if err != nil {
		return models.KPIDiario{}, err
	}
	exitosos, fallidos, err := a.Store.ContarRebootsEntre(ctx, desde, hasta)
	if err != nil {
		return models.KPIDiario{}, err
	}
	tokens, err := a.Store.SumarTokensEntre(ctx, desde, hasta)
	if err != nil {
		return models.KPIDiario{}, err
	}

	costo, err := a.Settings.Float(ctx, settings.ClaveCostoPor1K)
	if err != nil {
		// Misconfigured cost factor degrades the cost column only.
		if errors.Is(err, settings.ErrMissing) || errors.Is(err, settings.ErrTypeMismatch) {
			a.Logger.Warn().Err(err).Msg("costo_por_1k_tokens unavailable, cost stays zero")
			costo = 0
		} else {
			return models.KPIDiario{}, err
		}
	}

	res := kpi.AggregateDay(kpi.DayInput{
		Fecha:           fecha,
		Conversaciones:  convs,
		RebootsExitosos: exitosos,
		RebootsFallidos: fallidos,
		TokensTotal:     tokens,
		CostoPor1K:      costo,
		CalculadoEn:     time.Now().UTC(),
	})

	for _, id := range res.ExcluidasIDs {
		metrics.RegistrosExcluidos.Inc()
		if mErr := a.Store.MarcarRevisionManual(ctx, id); mErr != nil {
			a.Logger.Error().Err(mErr).Str("conversacion_id", id).Msg("failed to flag conversation for review")
		} else {
			a.Logger.Warn().Str("conversacion_id", id).Msg("conversation excluded from rollup, flagged for review")
		}
	}

	if err := a.Store.UpsertKPIDiario(ctx, res.KPIs); err != nil {
		return models.KPIDiario{}, err
	}

	metrics.AgregacionesTotal.Inc()
	a.Logger.Info().
		Str("fecha", fecha).
		Int("conversaciones", res.KPIs.TotalConversaciones).
		Int("excluidas", res.KPIs.Excluidas).
		Dur("elapsed", time.Since(inicio)).
		Msg("daily rollup stored")
	return res.KPIs, nil
}
