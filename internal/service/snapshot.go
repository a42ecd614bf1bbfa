package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/fibernet/kpicore/internal/cache"
	"github.com/fibernet/kpicore/internal/db"
	"github.com/fibernet/kpicore/internal/kpi"
	"github.com/fibernet/kpicore/internal/metrics"
	"github.com/fibernet/kpicore/internal/models"
	"github.com/fibernet/kpicore/internal/settings"
)

const snapshotTTL = 30 * time.Second

// Snapshot serves the always-current "today" projection straight from the
// conversation rows, using the same aggregation rules as the Daily
// Aggregator. It owns no state; Redis only shaves repeated dashboard reads.
type Snapshot struct {
	Store    *db.Store
	Settings *settings.Service
	Cache    *cache.Cache
	Logger   zerolog.Logger
}

func (s *Snapshot) Hoy(ctx context.Context) (models.SnapshotHoy, error) {
	ahora := time.Now()
	fecha, err := FechaEn(ctx, s.Settings, ahora)
	if err != nil {
		return models.SnapshotHoy{}, err
	}

	cacheKey := "snapshot:" + fecha
	var cached models.SnapshotHoy
	hit, err := s.Cache.GetJSON(ctx, cacheKey, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("snapshot cache read failed")
	}
	if hit {
		metrics.SnapshotCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.SnapshotCache.WithLabelValues("miss").Inc()

	desde, hasta, err := VentanaDia(ctx, s.Settings, fecha)
	if err != nil {
		return models.SnapshotHoy{}, err
	}
	convs, err := s.Store.ListIniciadasEntre(ctx, desde, hasta)
	if err != nil {
		return models.SnapshotHoy{}, err
	}
	exitosos, fallidos, err := s.Store.ContarRebootsEntre(ctx, desde, hasta)
	if err != nil {
		return models.SnapshotHoy{}, err
	}
	tokens, err := s.Store.SumarTokensEntre(ctx, desde, hasta)
	if err != nil {
		return models.SnapshotHoy{}, err
	}
	costo, err := s.Settings.Float(ctx, settings.ClaveCostoPor1K)
	if err != nil {
		if !errors.Is(err, settings.ErrMissing) && !errors.Is(err, settings.ErrTypeMismatch) {
			return models.SnapshotHoy{}, err
		}
		costo = 0
	}

	res := kpi.AggregateDay(kpi.DayInput{
		Fecha:           fecha,
		Conversaciones:  convs,
		RebootsExitosos: exitosos,
		RebootsFallidos: fallidos,
		TokensTotal:     tokens,
		CostoPor1K:      costo,
		CalculadoEn:     ahora.UTC(),
	})

	snap := models.SnapshotHoy{
		Fecha:      fecha,
		Abiertas:   res.Abiertas,
		Cerradas:   res.Cerradas,
		KPIs:       res.KPIs,
		GeneradoEn: ahora.UTC(),
	}
	if err := s.Cache.SetJSON(ctx, cacheKey, snap, snapshotTTL); err != nil {
		s.Logger.Warn().Err(err).Msg("snapshot cache write failed")
	}
	return snap, nil
}
