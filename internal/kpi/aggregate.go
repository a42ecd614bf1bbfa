package kpi

import (
	"time"

	"github.com/fibernet/kpicore/internal/models"
)

// DayInput feeds one aggregation pass. The reboot and token totals come from
// the action/message log of the same window; the cost factor comes from
// configuration.
type DayInput struct {
	Fecha           string
	Conversaciones  []models.Conversacion
	RebootsExitosos int
	RebootsFallidos int
	TokensTotal     int64
	CostoPor1K      float64
	CalculadoEn     time.Time
}

// Resultado is the aggregation output plus the bookkeeping the callers need:
// open/closed splits for the live snapshot and the ids excluded as malformed.
type Resultado struct {
	KPIs         models.KPIDiario
	Cerradas     int
	Abiertas     int
	ExcluidasIDs []string
}

// AggregateDay applies the rollup rules to one day's conversations. It is
// shared by the Daily Aggregator (closed rows only) and the live snapshot
// (today's rows, open or closed), so both views agree by construction.
//
// Averages over optional fields (FRT, CSAT) exclude nulls from numerator and
// denominator; a day with no data yields zero counts and null averages.
func AggregateDay(in DayInput) Resultado {
	k := models.KPIDiario{
		Fecha:           in.Fecha,
		RebootsExitosos: in.RebootsExitosos,
		RebootsFallidos: in.RebootsFallidos,
		TokensTotal:     in.TokensTotal,
		CostoEstimado:   float64(in.TokensTotal) / 1000 * in.CostoPor1K,
		CalculadoEn:     in.CalculadoEn,
	}

	var (
		res          Resultado
		frtSum       float64
		frtN         int
		frtMin       float64
		frtMax       float64
		ttrSum       float64
		ttrN         int
		ttrTier1Sum  float64
		ttrTier1N    int
		ttrTier2Sum  float64
		ttrTier2N    int
		csatSum      int
	)

	for _, c := range in.Conversaciones {
		if c.IniciadaEn.IsZero() {
			res.ExcluidasIDs = append(res.ExcluidasIDs, c.ID)
			continue
		}
		k.TotalConversaciones++
		if c.Cerrada() {
			res.Cerradas++
		} else {
			res.Abiertas++
		}

		if c.CategoriaResolucion != nil {
			switch *c.CategoriaResolucion {
			case models.ResolucionIA:
				k.ResueltasIA++
			case models.ResolucionVisita:
				k.VisitasTecnicas++
			case models.ResolucionFacturacion:
				k.SuspensionesFact++
			case models.ResolucionFallaMasiva:
				k.FallasMasivas++
			}
		}

		if c.FRTSeg != nil {
			v := *c.FRTSeg
			if frtN == 0 || v < frtMin {
				frtMin = v
			}
			if frtN == 0 || v > frtMax {
				frtMax = v
			}
			frtSum += v
			frtN++
		}

		if c.TTRMin != nil {
			ttrSum += *c.TTRMin
			ttrN++
			if c.CategoriaResolucion != nil {
				switch *c.CategoriaResolucion {
				case models.ResolucionIA:
					ttrTier1Sum += *c.TTRMin
					ttrTier1N++
				case models.ResolucionVisita:
					ttrTier2Sum += *c.TTRMin
					ttrTier2N++
				}
			}
		}

		if c.FCR != nil && *c.FCR {
			k.FCRTotal++
		}

		if c.CSAT != nil && *c.CSAT >= 1 && *c.CSAT <= 5 {
			k.CSATDist[*c.CSAT-1]++
			csatSum += *c.CSAT
			k.CSATRespuestas++
		}
	}
	k.Excluidas = len(res.ExcluidasIDs)

	if frtN > 0 {
		k.FRTPromedioSeg = ptr(frtSum / float64(frtN))
		k.FRTMinSeg = ptr(frtMin)
		k.FRTMaxSeg = ptr(frtMax)
	}
	if ttrN > 0 {
		k.TTRPromedioMin = ptr(ttrSum / float64(ttrN))
	}
	if ttrTier1N > 0 {
		k.TTRTier1Min = ptr(ttrTier1Sum / float64(ttrTier1N))
	}
	if ttrTier2N > 0 {
		k.TTRTier2Min = ptr(ttrTier2Sum / float64(ttrTier2N))
	}
	// FCR percentage is over the day's closed conversations; open rows in a
	// snapshot pass have no resolution yet and stay out of the denominator.
	if res.Cerradas > 0 {
		k.FCRPorcentaje = ptr(float64(k.FCRTotal) / float64(res.Cerradas) * 100)
	}
	if k.CSATRespuestas > 0 {
		k.CSATPromedio = ptr(float64(csatSum) / float64(k.CSATRespuestas))
	}

	res.KPIs = k
	return res
}

func ptr(v float64) *float64 {
	return &v
}
