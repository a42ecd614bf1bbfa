package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AgregacionesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kpicore_agregaciones_total",
		Help: "Daily rollup computations completed",
	})
	RegistrosExcluidos = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kpicore_registros_excluidos_total",
		Help: "Malformed conversation records excluded from rollups",
	})
	AlertasCreadas = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kpicore_alertas_creadas_total",
		Help: "SLA alerts raised, by type",
	}, []string{"tipo"})
	AlertasResueltas = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kpicore_alertas_resueltas_total",
		Help: "SLA alerts auto-resolved, by type",
	}, []string{"tipo"})
	SnapshotCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kpicore_snapshot_cache_total",
		Help: "Live snapshot cache lookups, by outcome",
	}, []string{"resultado"})
)

func init() {
	prometheus.MustRegister(AgregacionesTotal, RegistrosExcluidos, AlertasCreadas, AlertasResueltas, SnapshotCache)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
