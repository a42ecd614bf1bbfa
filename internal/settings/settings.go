// Package settings is the typed accessor over the operator-editable
// configuracion table. Values are validated against their declared kind at
// read time; reads are side-effect-free and cheap enough to call per check.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fibernet/kpicore/internal/models"
)

var (
	ErrMissing      = errors.New("setting not found")
	ErrTypeMismatch = errors.New("setting type mismatch")
)

// Value kinds stored in configuracion.tipo.
const (
	TipoTexto    = "texto"
	TipoEntero   = "entero"
	TipoDecimal  = "decimal"
	TipoBooleano = "booleano"
	TipoJSON     = "json"
)

// Keys the engine reads.
const (
	ClaveSenalMinima     = "senal_minima_dbm"
	ClaveSenalMaxima     = "senal_maxima_dbm"
	ClaveRebootEspera    = "reboot_espera_seg"
	ClaveSLAFRT          = "sla_frt_seg"
	ClaveSLATTRTier1     = "sla_ttr_tier1_min"
	ClaveSLATTRTier2     = "sla_ttr_tier2_min"
	ClaveSLAFCR          = "sla_fcr_porcentaje"
	ClaveSLACSAT         = "sla_csat_minimo"
	ClaveAlarmaMasiva    = "alarma_clientes_masivo"
	ClaveVentanaMasiva   = "ventana_masivo_min"
	ClaveTimezone        = "timezone_reporte"
	ClaveCostoPor1K      = "costo_por_1k_tokens"
)

type Getter interface {
	GetConfiguracion(ctx context.Context, clave string) (models.Configuracion, error)
}

type Service struct {
	store Getter
}

func New(store Getter) *Service {
	return &Service{store: store}
}

func (s *Service) get(ctx context.Context, clave, tipo string) (string, error) {
	c, err := s.store.GetConfiguracion(ctx, clave)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrMissing, clave)
		}
		return "", err
	}
	if c.Tipo != tipo {
		return "", fmt.Errorf("%w: %s is %s, wanted %s", ErrTypeMismatch, clave, c.Tipo, tipo)
	}
	return c.Valor, nil
}

func (s *Service) String(ctx context.Context, clave string) (string, error) {
	return s.get(ctx, clave, TipoTexto)
}

func (s *Service) Int(ctx context.Context, clave string) (int, error) {
	raw, err := s.get(ctx, clave, TipoEntero)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s holds %q", ErrTypeMismatch, clave, raw)
	}
	return v, nil
}

// Float accepts both decimal and entero kinds; an integer threshold is a
// valid decimal one.
func (s *Service) Float(ctx context.Context, clave string) (float64, error) {
	c, err := s.store.GetConfiguracion(ctx, clave)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrMissing, clave)
		}
		return 0, err
	}
	if c.Tipo != TipoDecimal && c.Tipo != TipoEntero {
		return 0, fmt.Errorf("%w: %s is %s, wanted %s", ErrTypeMismatch, clave, c.Tipo, TipoDecimal)
	}
	v, err := strconv.ParseFloat(c.Valor, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s holds %q", ErrTypeMismatch, clave, c.Valor)
	}
	return v, nil
}

func (s *Service) Bool(ctx context.Context, clave string) (bool, error) {
	raw, err := s.get(ctx, clave, TipoBooleano)
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s holds %q", ErrTypeMismatch, clave, raw)
	}
	return v, nil
}

func (s *Service) JSON(ctx context.Context, clave string, out any) error {
	raw, err := s.get(ctx, clave, TipoJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTypeMismatch, clave, err)
	}
	return nil
}

// Location resolves the reporting timezone that defines the calendar day for
// every component. All day-boundary math must go through this.
func (s *Service) Location(ctx context.Context) (*time.Location, error) {
	name, err := s.String(ctx, ClaveTimezone)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s holds %q", ErrTypeMismatch, ClaveTimezone, name)
	}
	return loc, nil
}

// Defaults are seeded once at startup with insert-if-absent semantics and
// never overwritten by the engine afterwards.
func Defaults() []models.Configuracion {
	return []models.Configuracion{
		{Clave: ClaveSenalMinima, Tipo: TipoDecimal, Valor: "-27", Descripcion: "Señal óptica mínima aceptable (dBm)"},
		{Clave: ClaveSenalMaxima, Tipo: TipoDecimal, Valor: "-8", Descripcion: "Señal óptica máxima aceptable (dBm)"},
		{Clave: ClaveRebootEspera, Tipo: TipoEntero, Valor: "120", Descripcion: "Espera post-reboot antes de verificar (segundos)"},
		{Clave: ClaveSLAFRT, Tipo: TipoEntero, Valor: "60", Descripcion: "SLA de primera respuesta (segundos)"},
		{Clave: ClaveSLATTRTier1, Tipo: TipoEntero, Valor: "15", Descripcion: "SLA de resolución remota (minutos)"},
		{Clave: ClaveSLATTRTier2, Tipo: TipoEntero, Valor: "240", Descripcion: "SLA de resolución con visita (minutos)"},
		{Clave: ClaveSLAFCR, Tipo: TipoDecimal, Valor: "70", Descripcion: "FCR mínimo diario (porcentaje)"},
		{Clave: ClaveSLACSAT, Tipo: TipoDecimal, Valor: "4.0", Descripcion: "CSAT promedio mínimo diario"},
		{Clave: ClaveAlarmaMasiva, Tipo: TipoEntero, Valor: "5", Descripcion: "Clientes afectados para declarar falla masiva"},
		{Clave: ClaveVentanaMasiva, Tipo: TipoEntero, Valor: "15", Descripcion: "Ventana de detección de falla masiva (minutos)"},
		{Clave: ClaveTimezone, Tipo: TipoTexto, Valor: "America/Bogota", Descripcion: "Zona horaria que define el día calendario"},
		{Clave: ClaveCostoPor1K, Tipo: TipoDecimal, Valor: "0.011", Descripcion: "Costo estimado por 1000 tokens (USD)"},
	}
}
