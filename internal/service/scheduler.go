package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/fibernet/kpicore/internal/cache"
	"github.com/fibernet/kpicore/internal/db"
	"github.com/fibernet/kpicore/internal/settings"
)

const lockTTL = 5 * time.Minute

// Scheduler drives the periodic aggregation cycle: "today" is recomputed on
// every tick (partial days are expected to change), and when the reporting-
// timezone day rolls over, the finished day gets one finalization pass.
// Per-date runs across instances serialize on a Redis lock; a loser skips,
// treating the winner's row as authoritative.
type Scheduler struct {
	Aggregator *Aggregator
	Evaluator  *Evaluator
	Settings   *settings.Service
	Cache      *cache.Cache
	Interval   time.Duration
	Logger     zerolog.Logger
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.Interval <= 0 {
		s.Interval = 5 * time.Minute
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	ultimaFecha, err := FechaEn(ctx, s.Settings, time.Now())
	if err != nil {
		s.Logger.Error().Err(err).Msg("reporting timezone unavailable at startup")
	} else {
		// A restart that straddled midnight ate the tick that finalizes the
		// previous day; catch up before waiting for the first tick.
		if ayer := fechaAnterior(ultimaFecha); ayer != "" {
			s.runFecha(ctx, ayer)
		}
		s.runFecha(ctx, ultimaFecha)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		fecha, err := FechaEn(ctx, s.Settings, time.Now())
		if err != nil {
			s.Logger.Error().Err(err).Msg("reporting timezone unavailable, tick skipped")
			continue
		}

		// Day boundary: the previous date is complete, finalize it first.
		if ultimaFecha != "" && fecha != ultimaFecha {
			s.runFecha(ctx, ultimaFecha)
		}
		ultimaFecha = fecha

		s.runFecha(ctx, fecha)

		if _, err := s.Evaluator.EvaluarFallaMasiva(ctx, time.Now()); err != nil {
			s.Logger.Error().Err(err).Msg("mass outage evaluation failed")
		}
	}
}

// fechaAnterior returns the calendar date immediately before fecha.
func fechaAnterior(fecha string) string {
	t, err := time.Parse("2006-01-02", fecha)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

func (s *Scheduler) runFecha(ctx context.Context, fecha string) {
	if err := s.RunConLock(ctx, fecha); err != nil {
		if errors.Is(err, db.ErrDuplicateRollup) {
			s.Logger.Debug().Str("fecha", fecha).Msg("another instance holds the aggregation lock")
			return
		}
		s.Logger.Error().Err(err).Str("fecha", fecha).Msg("scheduled aggregation failed")
	}
}

// RunConLock executes one locked aggregation for a date, retrying transient
// failures, then feeds the stored rollup to the day-level SLA checks.
func (s *Scheduler) RunConLock(ctx context.Context, fecha string) error {
	lockKey := "agg:" + fecha
	ok, err := s.Cache.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("aggregation lock unavailable, proceeding unlocked")
	} else if !ok {
		return db.ErrDuplicateRollup
	} else {
		defer func() {
			if uErr := s.Cache.Unlock(ctx, lockKey); uErr != nil {
				s.Logger.Warn().Err(uErr).Msg("aggregation unlock failed")
			}
		}()
	}

	op := func() error {
		_, rErr := s.Aggregator.RunFecha(ctx, fecha)
		return rErr
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return err
	}

	rollup, err := s.Aggregator.Store.GetKPIDiario(ctx, fecha)
	if err != nil {
		return err
	}
	if err := s.Evaluator.EvaluarConversacionesDia(ctx, fecha); err != nil {
		return err
	}
	return s.Evaluator.EvaluarDia(ctx, rollup)
}
