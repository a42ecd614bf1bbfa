package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fibernet/kpicore/internal/models"
)

var (
	// ErrAlreadyClosed is returned when a close is attempted on a
	// conversation that already has its KPI fields frozen.
	ErrAlreadyClosed = errors.New("conversation already closed")
	// ErrDuplicateRollup marks a losing concurrent aggregation attempt for a
	// date; the winner's row is authoritative and the loser discards.
	ErrDuplicateRollup = errors.New("rollup already being computed for date")
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ── Conversations ──

const conversacionCols = `id, telefono, contrato, nombre, fase_final, categoria_resolucion,
	ticket_id, serial_ont, reboot_ejecutado, senal_inicial, senal_final,
	iniciada_en, cerrada_en, frt_seg, ttr_min, fcr, csat`

func scanConversacion(row pgx.Row) (models.Conversacion, error) {
	var c models.Conversacion
	err := row.Scan(&c.ID, &c.Telefono, &c.Contrato, &c.Nombre, &c.FaseFinal,
		&c.CategoriaResolucion, &c.TicketID, &c.SerialONT, &c.RebootEjecutado,
		&c.SenalInicial, &c.SenalFinal, &c.IniciadaEn, &c.CerradaEn,
		&c.FRTSeg, &c.TTRMin, &c.FCR, &c.CSAT)
	return c, err
}

func (s *Store) CrearConversacion(ctx context.Context, c models.Conversacion) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.IniciadaEn.IsZero() {
		c.IniciadaEn = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO conversaciones (id, telefono, contrato, nombre, serial_ont, senal_inicial, iniciada_en)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.Telefono, c.Contrato, c.Nombre, c.SerialONT, c.SenalInicial, c.IniciadaEn)
	return c.ID, err
}

func (s *Store) GetConversacion(ctx context.Context, id string) (models.Conversacion, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+conversacionCols+` FROM conversaciones WHERE id = $1`, id)
	return scanConversacion(row)
}

func (s *Store) AgregarMensaje(ctx context.Context, m models.Mensaje) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.EnviadoEn.IsZero() {
		m.EnviadoEn = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO mensajes (id, conversacion_id, rol, contenido, fase, tokens, latencia_ms, enviado_en)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, m.ID, m.ConversacionID, m.Rol, m.Contenido, m.Fase, m.Tokens, m.LatenciaMs, m.EnviadoEn)
	return m.ID, err
}

func (s *Store) ListMensajes(ctx context.Context, conversacionID string) ([]models.Mensaje, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, conversacion_id, rol, contenido, fase, tokens, latencia_ms, enviado_en
		FROM mensajes WHERE conversacion_id = $1 ORDER BY enviado_en ASC, id ASC
	`, conversacionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Mensaje
	for rows.Next() {
		var m models.Mensaje
		if err := rows.Scan(&m.ID, &m.ConversacionID, &m.Rol, &m.Contenido, &m.Fase, &m.Tokens, &m.LatenciaMs, &m.EnviadoEn); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AgregarAccion(ctx context.Context, a models.Accion) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.EjecutadaEn.IsZero() {
		a.EjecutadaEn = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO acciones_ia (id, conversacion_id, tipo, sistema, metodo, endpoint, payload, respuesta, exitosa, error, latencia_ms, tokens, ejecutada_en)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, a.ID, a.ConversacionID, a.Tipo, a.Sistema, a.Metodo, a.Endpoint, a.Payload, a.Respuesta, a.Exitosa, a.Error, a.LatenciaMs, a.Tokens, a.EjecutadaEn)
	return a.ID, err
}

func (s *Store) ListAcciones(ctx context.Context, conversacionID string) ([]models.Accion, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, conversacion_id, tipo, sistema, metodo, endpoint, payload, respuesta, exitosa, error, latencia_ms, tokens, ejecutada_en
		FROM acciones_ia WHERE conversacion_id = $1 ORDER BY ejecutada_en ASC, id ASC
	`, conversacionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Accion
	for rows.Next() {
		var a models.Accion
		if err := rows.Scan(&a.ID, &a.ConversacionID, &a.Tipo, &a.Sistema, &a.Metodo, &a.Endpoint, &a.Payload, &a.Respuesta, &a.Exitosa, &a.Error, &a.LatenciaMs, &a.Tokens, &a.EjecutadaEn); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Cierre carries everything frozen onto the conversation row at close time.
type Cierre struct {
	FaseFinal           *string
	CategoriaResolucion string
	TicketID            *string
	SenalFinal          *float64
	RebootEjecutado     bool
	CerradaEn           time.Time
	FRTSeg              *float64
	TTRMin              *float64
	FCR                 bool
	CSAT                *int
}

// CerrarConversacion freezes the KPI fields exactly once. A second attempt
// hits the cerrada_en guard and reports ErrAlreadyClosed. The survey answer
// may land before the close does; a nil csat in the payload keeps it.
func (s *Store) CerrarConversacion(ctx context.Context, id string, c Cierre) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE conversaciones SET
			fase_final = $1,
			categoria_resolucion = $2,
			ticket_id = COALESCE($3, ticket_id),
			senal_final = $4,
			reboot_ejecutado = reboot_ejecutado OR $5,
			cerrada_en = $6,
			frt_seg = $7,
			ttr_min = $8,
			fcr = $9,
			csat = COALESCE($10, csat)
		WHERE id = $11 AND cerrada_en IS NULL
	`, c.FaseFinal, c.CategoriaResolucion, c.TicketID, c.SenalFinal, c.RebootEjecutado,
		c.CerradaEn, c.FRTSeg, c.TTRMin, c.FCR, c.CSAT, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, gErr := s.GetConversacion(ctx, id); gErr != nil {
			return gErr
		}
		return ErrAlreadyClosed
	}
	return nil
}

// SetCSAT stores the survey answer that arrives after closing. Set-once: a
// second answer for the same conversation is ignored.
func (s *Store) SetCSAT(ctx context.Context, id string, puntaje int) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE conversaciones SET csat = $1 WHERE id = $2 AND csat IS NULL
	`, puntaje, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarcarRevisionManual(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE conversaciones SET revision_manual = TRUE WHERE id = $1`, id)
	return err
}

// ListCerradasEntre returns conversations closed inside [desde, hasta).
func (s *Store) ListCerradasEntre(ctx context.Context, desde, hasta time.Time) ([]models.Conversacion, error) {
	return s.listConversaciones(ctx, `cerrada_en >= $1 AND cerrada_en < $2`, desde, hasta)
}

// ListIniciadasEntre returns conversations started inside [desde, hasta),
// open or closed. Feeds the live snapshot.
func (s *Store) ListIniciadasEntre(ctx context.Context, desde, hasta time.Time) ([]models.Conversacion, error) {
	return s.listConversaciones(ctx, `iniciada_en >= $1 AND iniciada_en < $2`, desde, hasta)
}

func (s *Store) listConversaciones(ctx context.Context, where string, args ...any) ([]models.Conversacion, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+conversacionCols+` FROM conversaciones WHERE `+where+` ORDER BY iniciada_en ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversacion
	for rows.Next() {
		c, err := scanConversacion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AbiertasConFallaDesde lists distinct open conversations whose ONT logged a
// failure at or after the given instant. Feeds mass-outage detection.
func (s *Store) AbiertasConFallaDesde(ctx context.Context, desde time.Time) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT c.id
		FROM conversaciones c
		JOIN fallas_ont f ON f.serial_ont = c.serial_ont
		WHERE c.cerrada_en IS NULL AND c.serial_ont IS NOT NULL AND f.detectada_en >= $1
	`, desde)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) MarcarFallaMasiva(ctx context.Context, ids []string) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE conversaciones SET categoria_resolucion = $1
		WHERE id = ANY($2) AND cerrada_en IS NULL
	`, models.ResolucionFallaMasiva, ids)
	return tag.RowsAffected(), err
}

// ContarRebootsEntre counts logged reboot actions by success flag inside
// [desde, hasta).
func (s *Store) ContarRebootsEntre(ctx context.Context, desde, hasta time.Time) (exitosos, fallidos int, err error) {
	err = s.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE exitosa), COUNT(*) FILTER (WHERE NOT exitosa)
		FROM acciones_ia WHERE tipo = $1 AND ejecutada_en >= $2 AND ejecutada_en < $3
	`, models.AccionReboot, desde, hasta).Scan(&exitosos, &fallidos)
	return exitosos, fallidos, err
}

// SumarTokensEntre totals assistant tokens across messages and actions
// inside [desde, hasta).
func (s *Store) SumarTokensEntre(ctx context.Context, desde, hasta time.Time) (int64, error) {
	var total int64
	err := s.Pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT SUM(tokens) FROM mensajes WHERE enviado_en >= $1 AND enviado_en < $2), 0)
		     + COALESCE((SELECT SUM(tokens) FROM acciones_ia WHERE ejecutada_en >= $1 AND ejecutada_en < $2), 0)
	`, desde, hasta).Scan(&total)
	return total, err
}

// ── Daily rollup ──

// UpsertKPIDiario writes the one row for a date, replacing any previous
// computation. Concurrent recomputations of the same date serialize on the
// primary key; last writer wins with identical data.
func (s *Store) UpsertKPIDiario(ctx context.Context, k models.KPIDiario) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO kpis_diarios (
			fecha, total_conversaciones, resueltas_ia, visitas_tecnicas,
			suspensiones_facturacion, fallas_masivas, excluidas,
			frt_promedio_seg, frt_min_seg, frt_max_seg,
			ttr_promedio_min, ttr_tier1_min, ttr_tier2_min,
			fcr_total, fcr_porcentaje,
			csat_promedio, csat_respuestas, csat_1, csat_2, csat_3, csat_4, csat_5,
			reboots_exitosos, reboots_fallidos, tokens_total, costo_estimado, calculado_en
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
		ON CONFLICT (fecha) DO UPDATE SET
			total_conversaciones = EXCLUDED.total_conversaciones,
			resueltas_ia = EXCLUDED.resueltas_ia,
			visitas_tecnicas = EXCLUDED.visitas_tecnicas,
			suspensiones_facturacion = EXCLUDED.suspensiones_facturacion,
			fallas_masivas = EXCLUDED.fallas_masivas,
			excluidas = EXCLUDED.excluidas,
			frt_promedio_seg = EXCLUDED.frt_promedio_seg,
			frt_min_seg = EXCLUDED.frt_min_seg,
			frt_max_seg = EXCLUDED.frt_max_seg,
			ttr_promedio_min = EXCLUDED.ttr_promedio_min,
			ttr_tier1_min = EXCLUDED.ttr_tier1_min,
			ttr_tier2_min = EXCLUDED.ttr_tier2_min,
			fcr_total = EXCLUDED.fcr_total,
			fcr_porcentaje = EXCLUDED.fcr_porcentaje,
			csat_promedio = EXCLUDED.csat_promedio,
			csat_respuestas = EXCLUDED.csat_respuestas,
			csat_1 = EXCLUDED.csat_1,
			csat_2 = EXCLUDED.csat_2,
			csat_3 = EXCLUDED.csat_3,
			csat_4 = EXCLUDED.csat_4,
			csat_5 = EXCLUDED.csat_5,
			reboots_exitosos = EXCLUDED.reboots_exitosos,
			reboots_fallidos = EXCLUDED.reboots_fallidos,
			tokens_total = EXCLUDED.tokens_total,
			costo_estimado = EXCLUDED.costo_estimado,
			calculado_en = EXCLUDED.calculado_en
	`, k.Fecha, k.TotalConversaciones, k.ResueltasIA, k.VisitasTecnicas,
		k.SuspensionesFact, k.FallasMasivas, k.Excluidas,
		k.FRTPromedioSeg, k.FRTMinSeg, k.FRTMaxSeg,
		k.TTRPromedioMin, k.TTRTier1Min, k.TTRTier2Min,
		k.FCRTotal, k.FCRPorcentaje,
		k.CSATPromedio, k.CSATRespuestas, k.CSATDist[0], k.CSATDist[1], k.CSATDist[2], k.CSATDist[3], k.CSATDist[4],
		k.RebootsExitosos, k.RebootsFallidos, k.TokensTotal, k.CostoEstimado, k.CalculadoEn)
	return err
}

const kpiCols = `fecha, total_conversaciones, resueltas_ia, visitas_tecnicas,
	suspensiones_facturacion, fallas_masivas, excluidas,
	frt_promedio_seg, frt_min_seg, frt_max_seg,
	ttr_promedio_min, ttr_tier1_min, ttr_tier2_min,
	fcr_total, fcr_porcentaje,
	csat_promedio, csat_respuestas, csat_1, csat_2, csat_3, csat_4, csat_5,
	reboots_exitosos, reboots_fallidos, tokens_total, costo_estimado, calculado_en`

func scanKPIDiario(row pgx.Row) (models.KPIDiario, error) {
	var k models.KPIDiario
	var fecha time.Time
	err := row.Scan(&fecha, &k.TotalConversaciones, &k.ResueltasIA, &k.VisitasTecnicas,
		&k.SuspensionesFact, &k.FallasMasivas, &k.Excluidas,
		&k.FRTPromedioSeg, &k.FRTMinSeg, &k.FRTMaxSeg,
		&k.TTRPromedioMin, &k.TTRTier1Min, &k.TTRTier2Min,
		&k.FCRTotal, &k.FCRPorcentaje,
		&k.CSATPromedio, &k.CSATRespuestas, &k.CSATDist[0], &k.CSATDist[1], &k.CSATDist[2], &k.CSATDist[3], &k.CSATDist[4],
		&k.RebootsExitosos, &k.RebootsFallidos, &k.TokensTotal, &k.CostoEstimado, &k.CalculadoEn)
	if err != nil {
		return k, err
	}
	k.Fecha = fecha.Format("2006-01-02")
	return k, nil
}

func (s *Store) GetKPIDiario(ctx context.Context, fecha string) (models.KPIDiario, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+kpiCols+` FROM kpis_diarios WHERE fecha = $1`, fecha)
	return scanKPIDiario(row)
}

func (s *Store) ListKPIDiarios(ctx context.Context, desde, hasta string) ([]models.KPIDiario, error) {
	query := `SELECT ` + kpiCols + ` FROM kpis_diarios`
	var args []any
	var wheres []string
	if desde != "" {
		args = append(args, desde)
		wheres = append(wheres, fmt.Sprintf("fecha >= $%d", len(args)))
	}
	if hasta != "" {
		args = append(args, hasta)
		wheres = append(wheres, fmt.Sprintf("fecha <= $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY fecha ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.KPIDiario
	for rows.Next() {
		k, err := scanKPIDiario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// ── SLA alerts ──

// CrearAlertaSiNoExiste inserts an open alert unless one is already open for
// the same (tipo, conversacion) pair. Returns whether a row was created.
func (s *Store) CrearAlertaSiNoExiste(ctx context.Context, a models.AlertaSLA) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreadaEn.IsZero() {
		a.CreadaEn = time.Now().UTC()
	}
	tag, err := s.Pool.Exec(ctx, `
		INSERT INTO alertas_sla (id, tipo, conversacion_id, descripcion, valor_observado, umbral, resuelta, creada_en)
		VALUES ($1,$2,$3,$4,$5,$6,FALSE,$7)
		ON CONFLICT (tipo, COALESCE(conversacion_id, '00000000-0000-0000-0000-000000000000'::uuid)) WHERE NOT resuelta
		DO NOTHING
	`, a.ID, a.Tipo, a.ConversacionID, a.Descripcion, a.ValorObservado, a.Umbral, a.CreadaEn)
	if err != nil {
		var pgErr *pgconn.PgError
		// A concurrent insert of the same open pair is a no-op, not a failure.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResolverAlertaAbierta transitions the open alert for (tipo, conversacion)
// to resolved, if one exists. Alerts are never deleted.
func (s *Store) ResolverAlertaAbierta(ctx context.Context, tipo string, conversacionID *string) (bool, error) {
	var tag pgconn.CommandTag
	var err error
	if conversacionID == nil {
		tag, err = s.Pool.Exec(ctx, `
			UPDATE alertas_sla SET resuelta = TRUE, resuelta_en = NOW()
			WHERE tipo = $1 AND conversacion_id IS NULL AND NOT resuelta
		`, tipo)
	} else {
		tag, err = s.Pool.Exec(ctx, `
			UPDATE alertas_sla SET resuelta = TRUE, resuelta_en = NOW()
			WHERE tipo = $1 AND conversacion_id = $2 AND NOT resuelta
		`, tipo, *conversacionID)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ResolverAlerta is the operator-facing resolve by alert id.
func (s *Store) ResolverAlerta(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE alertas_sla SET resuelta = TRUE, resuelta_en = NOW()
		WHERE id = $1 AND NOT resuelta
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) ListAlertas(ctx context.Context, resuelta *bool, tipo string, limit, offset int) ([]models.AlertaSLA, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, tipo, conversacion_id, descripcion, valor_observado, umbral, resuelta, creada_en, resuelta_en FROM alertas_sla`
	var args []any
	var wheres []string
	if resuelta != nil {
		args = append(args, *resuelta)
		wheres = append(wheres, fmt.Sprintf("resuelta = $%d", len(args)))
	}
	if tipo != "" {
		args = append(args, tipo)
		wheres = append(wheres, fmt.Sprintf("tipo = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY creada_en DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AlertaSLA
	for rows.Next() {
		var a models.AlertaSLA
		if err := rows.Scan(&a.ID, &a.Tipo, &a.ConversacionID, &a.Descripcion, &a.ValorObservado, &a.Umbral, &a.Resuelta, &a.CreadaEn, &a.ResueltaEn); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ── ONT failures ──

func (s *Store) CrearFalla(ctx context.Context, f models.FallaONT) (string, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.DetectadaEn.IsZero() {
		f.DetectadaEn = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO fallas_ont (id, serial_ont, contrato, tipo_falla, senal_dbm, resuelto_con_reboot, requirio_visita, detectada_en)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, f.ID, f.SerialONT, f.Contrato, f.TipoFalla, f.SenalDbm, f.ResueltoConReboot, f.RequirioVisita, f.DetectadaEn)
	return f.ID, err
}

// ListFallasDesde returns failure events at or after the given instant,
// optionally restricted to one serial.
func (s *Store) ListFallasDesde(ctx context.Context, serial string, desde time.Time) ([]models.FallaONT, error) {
	query := `SELECT id, serial_ont, contrato, tipo_falla, senal_dbm, resuelto_con_reboot, requirio_visita, detectada_en
		FROM fallas_ont WHERE detectada_en >= $1`
	args := []any{desde}
	if serial != "" {
		args = append(args, serial)
		query += fmt.Sprintf(" AND serial_ont = $%d", len(args))
	}
	query += " ORDER BY detectada_en ASC, id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FallaONT
	for rows.Next() {
		var f models.FallaONT
		if err := rows.Scan(&f.ID, &f.SerialONT, &f.Contrato, &f.TipoFalla, &f.SenalDbm, &f.ResueltoConReboot, &f.RequirioVisita, &f.DetectadaEn); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ── Configuration ──

func (s *Store) GetConfiguracion(ctx context.Context, clave string) (models.Configuracion, error) {
	var c models.Configuracion
	err := s.Pool.QueryRow(ctx, `
		SELECT clave, tipo, valor, descripcion, actualizado_en FROM configuracion WHERE clave = $1
	`, clave).Scan(&c.Clave, &c.Tipo, &c.Valor, &c.Descripcion, &c.ActualizadoEn)
	return c, err
}

func (s *Store) ListConfiguracion(ctx context.Context) ([]models.Configuracion, error) {
	rows, err := s.Pool.Query(ctx, `SELECT clave, tipo, valor, descripcion, actualizado_en FROM configuracion ORDER BY clave ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Configuracion
	for rows.Next() {
		var c models.Configuracion
		if err := rows.Scan(&c.Clave, &c.Tipo, &c.Valor, &c.Descripcion, &c.ActualizadoEn); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SeedConfiguracion inserts defaults without overwriting operator edits.
func (s *Store) SeedConfiguracion(ctx context.Context, defaults []models.Configuracion) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, c := range defaults {
			_, err := tx.Exec(ctx, `
				INSERT INTO configuracion (clave, tipo, valor, descripcion)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (clave) DO NOTHING
			`, c.Clave, c.Tipo, c.Valor, c.Descripcion)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SetConfiguracion(ctx context.Context, c models.Configuracion) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO configuracion (clave, tipo, valor, descripcion, actualizado_en)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (clave) DO UPDATE SET
			tipo = EXCLUDED.tipo,
			valor = EXCLUDED.valor,
			descripcion = CASE WHEN EXCLUDED.descripcion = '' THEN configuracion.descripcion ELSE EXCLUDED.descripcion END,
			actualizado_en = NOW()
	`, c.Clave, c.Tipo, c.Valor, c.Descripcion)
	return err
}
