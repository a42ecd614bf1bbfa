package db

import "context"

// Schema is the persisted data contract shared with the collaborators
// (conversational agent, ticketing integration, ONT monitor). Table and
// column names match what those systems already write and read.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversaciones (
		id UUID PRIMARY KEY,
		telefono TEXT NOT NULL,
		contrato TEXT,
		nombre TEXT,
		fase_final TEXT,
		categoria_resolucion TEXT,
		ticket_id TEXT,
		serial_ont TEXT,
		reboot_ejecutado BOOLEAN NOT NULL DEFAULT FALSE,
		senal_inicial DOUBLE PRECISION,
		senal_final DOUBLE PRECISION,
		iniciada_en TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		cerrada_en TIMESTAMPTZ,
		frt_seg DOUBLE PRECISION,
		ttr_min DOUBLE PRECISION,
		fcr BOOLEAN,
		csat SMALLINT CHECK (csat BETWEEN 1 AND 5),
		revision_manual BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversaciones_cerrada_en ON conversaciones (cerrada_en)`,
	`CREATE INDEX IF NOT EXISTS idx_conversaciones_iniciada_en ON conversaciones (iniciada_en)`,

	`CREATE TABLE IF NOT EXISTS mensajes (
		id UUID PRIMARY KEY,
		conversacion_id UUID NOT NULL REFERENCES conversaciones(id) ON DELETE CASCADE,
		rol TEXT NOT NULL CHECK (rol IN ('cliente','agente','sistema')),
		contenido TEXT NOT NULL,
		fase TEXT,
		tokens INTEGER NOT NULL DEFAULT 0,
		latencia_ms INTEGER NOT NULL DEFAULT 0,
		enviado_en TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mensajes_conversacion ON mensajes (conversacion_id, enviado_en)`,

	`CREATE TABLE IF NOT EXISTS acciones_ia (
		id UUID PRIMARY KEY,
		conversacion_id UUID NOT NULL REFERENCES conversaciones(id) ON DELETE CASCADE,
		tipo TEXT NOT NULL,
		sistema TEXT NOT NULL,
		metodo TEXT,
		endpoint TEXT,
		payload JSONB,
		respuesta JSONB,
		exitosa BOOLEAN NOT NULL DEFAULT TRUE,
		error TEXT,
		latencia_ms INTEGER NOT NULL DEFAULT 0,
		tokens INTEGER NOT NULL DEFAULT 0,
		ejecutada_en TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_acciones_conversacion ON acciones_ia (conversacion_id)`,
	`CREATE INDEX IF NOT EXISTS idx_acciones_tipo ON acciones_ia (tipo, ejecutada_en)`,

	`CREATE TABLE IF NOT EXISTS kpis_diarios (
		fecha DATE PRIMARY KEY,
		total_conversaciones INTEGER NOT NULL DEFAULT 0,
		resueltas_ia INTEGER NOT NULL DEFAULT 0,
		visitas_tecnicas INTEGER NOT NULL DEFAULT 0,
		suspensiones_facturacion INTEGER NOT NULL DEFAULT 0,
		fallas_masivas INTEGER NOT NULL DEFAULT 0,
		excluidas INTEGER NOT NULL DEFAULT 0,
		frt_promedio_seg DOUBLE PRECISION,
		frt_min_seg DOUBLE PRECISION,
		frt_max_seg DOUBLE PRECISION,
		ttr_promedio_min DOUBLE PRECISION,
		ttr_tier1_min DOUBLE PRECISION,
		ttr_tier2_min DOUBLE PRECISION,
		fcr_total INTEGER NOT NULL DEFAULT 0,
		fcr_porcentaje DOUBLE PRECISION,
		csat_promedio DOUBLE PRECISION,
		csat_respuestas INTEGER NOT NULL DEFAULT 0,
		csat_1 INTEGER NOT NULL DEFAULT 0,
		csat_2 INTEGER NOT NULL DEFAULT 0,
		csat_3 INTEGER NOT NULL DEFAULT 0,
		csat_4 INTEGER NOT NULL DEFAULT 0,
		csat_5 INTEGER NOT NULL DEFAULT 0,
		reboots_exitosos INTEGER NOT NULL DEFAULT 0,
		reboots_fallidos INTEGER NOT NULL DEFAULT 0,
		tokens_total BIGINT NOT NULL DEFAULT 0,
		costo_estimado DOUBLE PRECISION NOT NULL DEFAULT 0,
		calculado_en TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS alertas_sla (
		id UUID PRIMARY KEY,
		tipo TEXT NOT NULL,
		conversacion_id UUID REFERENCES conversaciones(id) ON DELETE SET NULL,
		descripcion TEXT NOT NULL,
		valor_observado DOUBLE PRECISION NOT NULL,
		umbral DOUBLE PRECISION NOT NULL,
		resuelta BOOLEAN NOT NULL DEFAULT FALSE,
		creada_en TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		resuelta_en TIMESTAMPTZ
	)`,
	// One open alert per (type, conversation); the COALESCE covers day-level
	// alerts that carry no conversation.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_alertas_abiertas
		ON alertas_sla (tipo, COALESCE(conversacion_id, '00000000-0000-0000-0000-000000000000'::uuid))
		WHERE NOT resuelta`,
	`CREATE INDEX IF NOT EXISTS idx_alertas_creada_en ON alertas_sla (creada_en)`,

	`CREATE TABLE IF NOT EXISTS fallas_ont (
		id UUID PRIMARY KEY,
		serial_ont TEXT NOT NULL,
		contrato TEXT,
		tipo_falla TEXT NOT NULL CHECK (tipo_falla IN ('offline','senal_baja','intermitente')),
		senal_dbm DOUBLE PRECISION,
		resuelto_con_reboot BOOLEAN NOT NULL DEFAULT FALSE,
		requirio_visita BOOLEAN NOT NULL DEFAULT FALSE,
		detectada_en TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fallas_serial ON fallas_ont (serial_ont, detectada_en)`,

	`CREATE TABLE IF NOT EXISTS configuracion (
		clave TEXT PRIMARY KEY,
		tipo TEXT NOT NULL CHECK (tipo IN ('texto','entero','decimal','booleano','json')),
		valor TEXT NOT NULL,
		descripcion TEXT NOT NULL DEFAULT '',
		actualizado_en TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
