package kpi

import (
	"testing"
	"time"

	"github.com/fibernet/kpicore/internal/models"
)

func cerrada(id, categoria string, frt *float64, ttr float64, fcr bool, csat *int) models.Conversacion {
	fin := inicio.Add(time.Duration(ttr * float64(time.Minute)))
	return models.Conversacion{
		ID:                  id,
		IniciadaEn:          inicio,
		CerradaEn:           &fin,
		CategoriaResolucion: &categoria,
		FRTSeg:              frt,
		TTRMin:              &ttr,
		FCR:                 &fcr,
		CSAT:                csat,
	}
}

func iptr(v int) *int { return &v }

func TestAggregateDayPromedios(t *testing.T) {
	res := AggregateDay(DayInput{
		Fecha: "2025-03-10",
		Conversaciones: []models.Conversacion{
			cerrada("c1", models.ResolucionIA, ptr(30), 10, true, iptr(5)),
			cerrada("c2", models.ResolucionIA, ptr(90), 20, true, nil),
			cerrada("c3", models.ResolucionVisita, nil, 120, false, iptr(3)),
		},
		RebootsExitosos: 2,
		RebootsFallidos: 1,
		TokensTotal:     10000,
		CostoPor1K:      0.5,
	})

	k := res.KPIs
	if k.TotalConversaciones != 3 || res.Cerradas != 3 || res.Abiertas != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if k.FRTPromedioSeg == nil || *k.FRTPromedioSeg != 60 {
		t.Fatalf("FRT average must skip nulls: got %v", k.FRTPromedioSeg)
	}
	if *k.FRTMinSeg != 30 || *k.FRTMaxSeg != 90 {
		t.Fatalf("unexpected FRT min/max: %v %v", *k.FRTMinSeg, *k.FRTMaxSeg)
	}
	if *k.TTRPromedioMin != 50 {
		t.Fatalf("expected overall TTR 50, got %v", *k.TTRPromedioMin)
	}
	if *k.TTRTier1Min != 15 || *k.TTRTier2Min != 120 {
		t.Fatalf("unexpected tier TTRs: %v %v", *k.TTRTier1Min, *k.TTRTier2Min)
	}
	if k.FCRTotal != 2 || *k.FCRPorcentaje < 66.6 || *k.FCRPorcentaje > 66.7 {
		t.Fatalf("unexpected FCR: total=%d pct=%v", k.FCRTotal, *k.FCRPorcentaje)
	}
	// {5, null, 3} averages to 4.0 over two answers, not three.
	if k.CSATRespuestas != 2 || *k.CSATPromedio != 4 {
		t.Fatalf("CSAT must skip nulls: n=%d avg=%v", k.CSATRespuestas, k.CSATPromedio)
	}
	if k.CSATDist != [5]int{0, 0, 1, 0, 1} {
		t.Fatalf("unexpected CSAT distribution: %v", k.CSATDist)
	}
	if k.CostoEstimado != 5 {
		t.Fatalf("expected cost 5.0 for 10k tokens at 0.5/1k, got %v", k.CostoEstimado)
	}
}

func TestAggregateDayVacio(t *testing.T) {
	res := AggregateDay(DayInput{Fecha: "2025-03-11"})
	k := res.KPIs
	if k.TotalConversaciones != 0 {
		t.Fatalf("expected zero conversations")
	}
	if k.FRTPromedioSeg != nil || k.TTRPromedioMin != nil || k.FCRPorcentaje != nil || k.CSATPromedio != nil {
		t.Fatalf("empty day must keep averages null: %+v", k)
	}
}

func TestAggregateDayExcluyeMalformadas(t *testing.T) {
	res := AggregateDay(DayInput{
		Fecha: "2025-03-10",
		Conversaciones: []models.Conversacion{
			cerrada("c1", models.ResolucionIA, ptr(30), 10, true, nil),
			{ID: "rota"},
		},
	})
	if res.KPIs.TotalConversaciones != 1 {
		t.Fatalf("malformed row must not count, got %d", res.KPIs.TotalConversaciones)
	}
	if len(res.ExcluidasIDs) != 1 || res.ExcluidasIDs[0] != "rota" {
		t.Fatalf("expected rota excluded, got %v", res.ExcluidasIDs)
	}
	if res.KPIs.Excluidas != 1 {
		t.Fatalf("excluded count must land in the rollup")
	}
}

func TestAggregateDayAbiertasFueraDelFCR(t *testing.T) {
	abierta := models.Conversacion{ID: "c2", IniciadaEn: inicio}
	res := AggregateDay(DayInput{
		Fecha: "2025-03-10",
		Conversaciones: []models.Conversacion{
			cerrada("c1", models.ResolucionIA, nil, 10, true, nil),
			abierta,
		},
	})
	if res.Abiertas != 1 || res.Cerradas != 1 {
		t.Fatalf("unexpected open/closed split: %+v", res)
	}
	// One closed conversation, one FCR hit: 100% even with an open row present.
	if res.KPIs.FCRPorcentaje == nil || *res.KPIs.FCRPorcentaje != 100 {
		t.Fatalf("open rows must stay out of the FCR denominator: %v", res.KPIs.FCRPorcentaje)
	}
}

func TestAggregateDayDeterminista(t *testing.T) {
	in := DayInput{
		Fecha: "2025-03-10",
		Conversaciones: []models.Conversacion{
			cerrada("c1", models.ResolucionIA, ptr(30), 10, true, iptr(4)),
			cerrada("c2", models.ResolucionVisita, ptr(60), 200, false, iptr(2)),
		},
		CalculadoEn: inicio,
	}
	a := AggregateDay(in)
	b := AggregateDay(in)
	if *a.KPIs.FRTPromedioSeg != *b.KPIs.FRTPromedioSeg || a.KPIs.CSATDist != b.KPIs.CSATDist {
		t.Fatalf("same input must produce the same rollup")
	}
}
