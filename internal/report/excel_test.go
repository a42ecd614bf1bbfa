package report

import (
	"testing"
	"time"

	"github.com/fibernet/kpicore/internal/models"
)

func TestKPIsXLSX(t *testing.T) {
	frt := 42.5
	rollups := []models.KPIDiario{
		{
			Fecha:               "2025-03-10",
			TotalConversaciones: 7,
			ResueltasIA:         5,
			FRTPromedioSeg:      &frt,
			CSATDist:            [5]int{0, 1, 0, 2, 3},
			TokensTotal:         12345,
			CalculadoEn:         time.Now(),
		},
		{Fecha: "2025-03-11"},
	}

	f, err := KPIsXLSX(rollups)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("KPIs", "A1")
	if err != nil || got != "Fecha" {
		t.Fatalf("expected header Fecha in A1, got %q (%v)", got, err)
	}
	got, _ = f.GetCellValue("KPIs", "A2")
	if got != "2025-03-10" {
		t.Fatalf("expected first rollup date in A2, got %q", got)
	}
	got, _ = f.GetCellValue("KPIs", "H2")
	if got != "42.5" {
		t.Fatalf("expected FRT average in H2, got %q", got)
	}
	// Day two has no measurable FRT: the cell stays empty, never zero.
	got, _ = f.GetCellValue("KPIs", "H3")
	if got != "" {
		t.Fatalf("null average must render as empty cell, got %q", got)
	}
}
