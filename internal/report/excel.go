// Package report renders operator-facing exports of the KPI history.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fibernet/kpicore/internal/models"
)

var columnas = []string{
	"Fecha", "Conversaciones", "Resueltas IA", "Visitas técnicas",
	"Suspensiones facturación", "Fallas masivas", "Excluidas",
	"FRT prom (s)", "FRT min (s)", "FRT max (s)",
	"TTR prom (min)", "TTR tier1 (min)", "TTR tier2 (min)",
	"FCR", "FCR %",
	"CSAT prom", "CSAT respuestas", "CSAT 1", "CSAT 2", "CSAT 3", "CSAT 4", "CSAT 5",
	"Reboots OK", "Reboots fallidos", "Tokens", "Costo (USD)",
}

// KPIsXLSX builds one worksheet with a row per rollup date. Null averages
// stay as empty cells rather than zeros.
func KPIsXLSX(rollups []models.KPIDiario) (*excelize.File, error) {
	f := excelize.NewFile()
	const hoja = "KPIs"
	if err := f.SetSheetName("Sheet1", hoja); err != nil {
		return nil, err
	}

	for i, col := range columnas {
		celda, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(hoja, celda, col); err != nil {
			return nil, err
		}
	}

	for fila, k := range rollups {
		valores := []any{
			k.Fecha, k.TotalConversaciones, k.ResueltasIA, k.VisitasTecnicas,
			k.SuspensionesFact, k.FallasMasivas, k.Excluidas,
			celdaOpcional(k.FRTPromedioSeg), celdaOpcional(k.FRTMinSeg), celdaOpcional(k.FRTMaxSeg),
			celdaOpcional(k.TTRPromedioMin), celdaOpcional(k.TTRTier1Min), celdaOpcional(k.TTRTier2Min),
			k.FCRTotal, celdaOpcional(k.FCRPorcentaje),
			celdaOpcional(k.CSATPromedio), k.CSATRespuestas,
			k.CSATDist[0], k.CSATDist[1], k.CSATDist[2], k.CSATDist[3], k.CSATDist[4],
			k.RebootsExitosos, k.RebootsFallidos, k.TokensTotal, k.CostoEstimado,
		}
		for col, v := range valores {
			if v == nil {
				continue
			}
			celda, err := excelize.CoordinatesToCellName(col+1, fila+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(hoja, celda, v); err != nil {
				return nil, fmt.Errorf("fila %d: %w", fila+2, err)
			}
		}
	}
	return f, nil
}

func celdaOpcional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
