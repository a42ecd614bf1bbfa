package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fibernet/kpicore/internal/metrics"
	"github.com/fibernet/kpicore/internal/models"
	"github.com/fibernet/kpicore/internal/settings"
)

// EvaluatorStore is the slice of the persistence layer the evaluator drives:
// alert state transitions plus the reads its checks run over.
type EvaluatorStore interface {
	CrearAlertaSiNoExiste(ctx context.Context, a models.AlertaSLA) (bool, error)
	ResolverAlertaAbierta(ctx context.Context, tipo string, conversacionID *string) (bool, error)
	AbiertasConFallaDesde(ctx context.Context, desde time.Time) ([]string, error)
	MarcarFallaMasiva(ctx context.Context, ids []string) (int64, error)
	ListCerradasEntre(ctx context.Context, desde, hasta time.Time) ([]models.Conversacion, error)
}

// Umbrales are the SLA targets in force for one evaluation pass. A nil field
// means its setting was missing or mistyped and that check is skipped.
type Umbrales struct {
	FRTSeg        *float64
	TTRTier1Min   *float64
	TTRTier2Min   *float64
	FCRPorcentaje *float64
	CSATMinimo    *float64
}

// Verificacion is one threshold comparison outcome.
type Verificacion struct {
	Tipo        string
	Valor       float64
	Umbral      float64
	Excedido    bool
	Descripcion string
}

// VerificarConversacion applies the per-conversation checks: FRT against the
// first-response target and TTR against the tier matching the resolution
// path. Checks with no measurable value produce nothing.
func VerificarConversacion(conv models.Conversacion, u Umbrales) []Verificacion {
	var out []Verificacion

	if u.FRTSeg != nil && conv.FRTSeg != nil {
		out = append(out, Verificacion{
			Tipo:        models.AlertaFRTExcedido,
			Valor:       *conv.FRTSeg,
			Umbral:      *u.FRTSeg,
			Excedido:    *conv.FRTSeg > *u.FRTSeg,
			Descripcion: fmt.Sprintf("FRT %.0fs sobre objetivo %.0fs", *conv.FRTSeg, *u.FRTSeg),
		})
	}

	if conv.TTRMin != nil && conv.CategoriaResolucion != nil {
		var objetivo *float64
		switch *conv.CategoriaResolucion {
		case models.ResolucionIA:
			objetivo = u.TTRTier1Min
		case models.ResolucionVisita:
			objetivo = u.TTRTier2Min
		}
		if objetivo != nil {
			out = append(out, Verificacion{
				Tipo:        models.AlertaTTRExcedido,
				Valor:       *conv.TTRMin,
				Umbral:      *objetivo,
				Excedido:    *conv.TTRMin > *objetivo,
				Descripcion: fmt.Sprintf("TTR %.1fmin sobre objetivo %.0fmin (%s)", *conv.TTRMin, *objetivo, *conv.CategoriaResolucion),
			})
		}
	}
	return out
}

// VerificarDia applies the per-day checks over a stored rollup: FCR
// percentage floor and CSAT average floor. Days without respondents or
// closed conversations have nothing to check.
func VerificarDia(k models.KPIDiario, u Umbrales) []Verificacion {
	var out []Verificacion

	if u.FCRPorcentaje != nil && k.FCRPorcentaje != nil {
		out = append(out, Verificacion{
			Tipo:        models.AlertaFCRBajo,
			Valor:       *k.FCRPorcentaje,
			Umbral:      *u.FCRPorcentaje,
			Excedido:    *k.FCRPorcentaje < *u.FCRPorcentaje,
			Descripcion: fmt.Sprintf("FCR %.1f%% bajo el mínimo %.1f%% (%s)", *k.FCRPorcentaje, *u.FCRPorcentaje, k.Fecha),
		})
	}
	if u.CSATMinimo != nil && k.CSATPromedio != nil {
		out = append(out, Verificacion{
			Tipo:        models.AlertaCSATBajo,
			Valor:       *k.CSATPromedio,
			Umbral:      *u.CSATMinimo,
			Excedido:    *k.CSATPromedio < *u.CSATMinimo,
			Descripcion: fmt.Sprintf("CSAT promedio %.2f bajo el mínimo %.2f (%s)", *k.CSATPromedio, *u.CSATMinimo, k.Fecha),
		})
	}
	return out
}

// Evaluator raises and retires SLA alerts. Alert creation is idempotent on
// the open (tipo, conversacion) pair and resolution is a state transition,
// never a delete.
type Evaluator struct {
	Store    EvaluatorStore
	Settings *settings.Service
	Logger   zerolog.Logger
}

func (e *Evaluator) cargarUmbral(ctx context.Context, clave string) *float64 {
	v, err := e.Settings.Float(ctx, clave)
	if err != nil {
		// Misconfiguration skips this one check; the rest of the pass runs.
		if errors.Is(err, settings.ErrMissing) || errors.Is(err, settings.ErrTypeMismatch) {
			e.Logger.Warn().Err(err).Str("clave", clave).Msg("threshold unavailable, check skipped")
			return nil
		}
		e.Logger.Error().Err(err).Str("clave", clave).Msg("threshold lookup failed, check skipped")
		return nil
	}
	return &v
}

func (e *Evaluator) cargarUmbrales(ctx context.Context) Umbrales {
	return Umbrales{
		FRTSeg:        e.cargarUmbral(ctx, settings.ClaveSLAFRT),
		TTRTier1Min:   e.cargarUmbral(ctx, settings.ClaveSLATTRTier1),
		TTRTier2Min:   e.cargarUmbral(ctx, settings.ClaveSLATTRTier2),
		FCRPorcentaje: e.cargarUmbral(ctx, settings.ClaveSLAFCR),
		CSATMinimo:    e.cargarUmbral(ctx, settings.ClaveSLACSAT),
	}
}

func (e *Evaluator) aplicar(ctx context.Context, verificaciones []Verificacion, conversacionID *string) error {
	for _, v := range verificaciones {
		if v.Excedido {
			creada, err := e.Store.CrearAlertaSiNoExiste(ctx, models.AlertaSLA{
				Tipo:           v.Tipo,
				ConversacionID: conversacionID,
				Descripcion:    v.Descripcion,
				ValorObservado: v.Valor,
				Umbral:         v.Umbral,
			})
			if err != nil {
				return err
			}
			if creada {
				metrics.AlertasCreadas.WithLabelValues(v.Tipo).Inc()
				e.Logger.Warn().Str("tipo", v.Tipo).Float64("valor", v.Valor).Float64("umbral", v.Umbral).Msg("sla alert raised")
			}
			continue
		}
		resuelta, err := e.Store.ResolverAlertaAbierta(ctx, v.Tipo, conversacionID)
		if err != nil {
			return err
		}
		if resuelta {
			metrics.AlertasResueltas.WithLabelValues(v.Tipo).Inc()
			e.Logger.Info().Str("tipo", v.Tipo).Msg("sla alert auto-resolved")
		}
	}
	return nil
}

// EvaluarConversacion runs the close-time checks for one conversation.
func (e *Evaluator) EvaluarConversacion(ctx context.Context, conv models.Conversacion) error {
	u := e.cargarUmbrales(ctx)
	return e.aplicar(ctx, VerificarConversacion(conv, u), &conv.ID)
}

// EvaluarConversacionesDia re-runs the close-time checks over every
// conversation closed on the date. A record corrected since its alert was
// raised comes back inside threshold here and the open alert retires.
func (e *Evaluator) EvaluarConversacionesDia(ctx context.Context, fecha string) error {
	desde, hasta, err := VentanaDia(ctx, e.Settings, fecha)
	if err != nil {
		return err
	}
	convs, err := e.Store.ListCerradasEntre(ctx, desde, hasta)
	if err != nil {
		return err
	}
	u := e.cargarUmbrales(ctx)
	for _, conv := range convs {
		if err := e.aplicar(ctx, VerificarConversacion(conv, u), &conv.ID); err != nil {
			return err
		}
	}
	return nil
}

// EvaluarDia runs the rollup-level checks for one stored date.
func (e *Evaluator) EvaluarDia(ctx context.Context, k models.KPIDiario) error {
	u := e.cargarUmbrales(ctx)
	return e.aplicar(ctx, VerificarDia(k, u), nil)
}

// EvaluarFallaMasiva checks whether enough distinct open conversations report
// hardware failure inside the configured window. Breach tags the affected
// conversations and raises one aggregate alert, never one per customer.
func (e *Evaluator) EvaluarFallaMasiva(ctx context.Context, ahora time.Time) (bool, error) {
	minimo, err := e.Settings.Int(ctx, settings.ClaveAlarmaMasiva)
	if err != nil {
		if errors.Is(err, settings.ErrMissing) || errors.Is(err, settings.ErrTypeMismatch) {
			e.Logger.Warn().Err(err).Msg("mass outage threshold unavailable, check skipped")
			return false, nil
		}
		return false, err
	}
	ventanaMin, err := e.Settings.Int(ctx, settings.ClaveVentanaMasiva)
	if err != nil {
		if errors.Is(err, settings.ErrMissing) || errors.Is(err, settings.ErrTypeMismatch) {
			e.Logger.Warn().Err(err).Msg("mass outage window unavailable, check skipped")
			return false, nil
		}
		return false, err
	}

	desde := ahora.Add(-time.Duration(ventanaMin) * time.Minute)
	ids, err := e.Store.AbiertasConFallaDesde(ctx, desde)
	if err != nil {
		return false, err
	}

	if len(ids) < minimo {
		resuelta, err := e.Store.ResolverAlertaAbierta(ctx, models.AlertaFallaMasiva, nil)
		if err != nil {
			return false, err
		}
		if resuelta {
			metrics.AlertasResueltas.WithLabelValues(models.AlertaFallaMasiva).Inc()
			e.Logger.Info().Msg("mass outage alert auto-resolved")
		}
		return false, nil
	}

	if _, err := e.Store.MarcarFallaMasiva(ctx, ids); err != nil {
		return false, err
	}
	creada, err := e.Store.CrearAlertaSiNoExiste(ctx, models.AlertaSLA{
		Tipo:           models.AlertaFallaMasiva,
		Descripcion:    fmt.Sprintf("%d clientes con falla de hardware en %d minutos", len(ids), ventanaMin),
		ValorObservado: float64(len(ids)),
		Umbral:         float64(minimo),
	})
	if err != nil {
		return false, err
	}
	if creada {
		metrics.AlertasCreadas.WithLabelValues(models.AlertaFallaMasiva).Inc()
		e.Logger.Warn().Int("clientes", len(ids)).Msg("mass outage alert raised")
	}
	return true, nil
}
