package models

import (
	"encoding/json"
	"time"
)

// Resolution categories written on a conversation at close time.
const (
	ResolucionIA          = "resuelta_ia"
	ResolucionVisita      = "visita_tecnica"
	ResolucionFacturacion = "suspension_facturacion"
	ResolucionFallaMasiva = "falla_masiva"
)

// Action types logged by the agent against external systems.
const (
	AccionConsulta         = "consulta"
	AccionReboot           = "reboot"
	AccionCrearTicket      = "crear_ticket"
	AccionCerrarTicket     = "cerrar_ticket"
	AccionEncuestaCSAT     = "encuesta_csat"
	AccionNotificarTecnico = "notificar_tecnico"
)

// Message roles.
const (
	RolCliente = "cliente"
	RolAgente  = "agente"
	RolSistema = "sistema"
)

// SLA alert types.
const (
	AlertaFRTExcedido = "frt_excedido"
	AlertaTTRExcedido = "ttr_excedido"
	AlertaCSATBajo    = "csat_bajo"
	AlertaFCRBajo     = "fcr_bajo"
	AlertaFallaMasiva = "falla_masiva"
)

// ONT failure types.
const (
	FallaOffline      = "offline"
	FallaSenalBaja    = "senal_baja"
	FallaIntermitente = "intermitente"
)

type Conversacion struct {
	ID                  string     `json:"id"`
	Telefono            string     `json:"telefono"`
	Contrato            *string    `json:"contrato"`
	Nombre              *string    `json:"nombre"`
	FaseFinal           *string    `json:"fase_final"`
	CategoriaResolucion *string    `json:"categoria_resolucion"`
	TicketID            *string    `json:"ticket_id"`
	SerialONT           *string    `json:"serial_ont"`
	RebootEjecutado     bool       `json:"reboot_ejecutado"`
	SenalInicial        *float64   `json:"senal_inicial"`
	SenalFinal          *float64   `json:"senal_final"`
	IniciadaEn          time.Time  `json:"iniciada_en"`
	CerradaEn           *time.Time `json:"cerrada_en"`
	FRTSeg              *float64   `json:"frt_seg"`
	TTRMin              *float64   `json:"ttr_min"`
	FCR                 *bool      `json:"fcr"`
	CSAT                *int       `json:"csat"`
}

func (c Conversacion) Cerrada() bool {
	return c.CerradaEn != nil
}

type Mensaje struct {
	ID             string    `json:"id"`
	ConversacionID string    `json:"conversacion_id"`
	Rol            string    `json:"rol"`
	Contenido      string    `json:"contenido"`
	Fase           *string   `json:"fase"`
	Tokens         int       `json:"tokens"`
	LatenciaMs     int       `json:"latencia_ms"`
	EnviadoEn      time.Time `json:"enviado_en"`
}

type Accion struct {
	ID             string          `json:"id"`
	ConversacionID string          `json:"conversacion_id"`
	Tipo           string          `json:"tipo"`
	Sistema        string          `json:"sistema"`
	Metodo         *string         `json:"metodo"`
	Endpoint       *string         `json:"endpoint"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Respuesta      json.RawMessage `json:"respuesta,omitempty"`
	Exitosa        bool            `json:"exitosa"`
	Error          *string         `json:"error"`
	LatenciaMs     int             `json:"latencia_ms"`
	Tokens         int             `json:"tokens"`
	EjecutadaEn    time.Time       `json:"ejecutada_en"`
}

// KPIDiario is the single rollup row for one calendar date.
type KPIDiario struct {
	Fecha string `json:"fecha"`

	TotalConversaciones int `json:"total_conversaciones"`
	ResueltasIA         int `json:"resueltas_ia"`
	VisitasTecnicas     int `json:"visitas_tecnicas"`
	SuspensionesFact    int `json:"suspensiones_facturacion"`
	FallasMasivas       int `json:"fallas_masivas"`
	Excluidas           int `json:"excluidas"`

	FRTPromedioSeg *float64 `json:"frt_promedio_seg"`
	FRTMinSeg      *float64 `json:"frt_min_seg"`
	FRTMaxSeg      *float64 `json:"frt_max_seg"`

	TTRPromedioMin *float64 `json:"ttr_promedio_min"`
	TTRTier1Min    *float64 `json:"ttr_tier1_min"`
	TTRTier2Min    *float64 `json:"ttr_tier2_min"`

	FCRTotal      int      `json:"fcr_total"`
	FCRPorcentaje *float64 `json:"fcr_porcentaje"`

	CSATPromedio   *float64 `json:"csat_promedio"`
	CSATRespuestas int      `json:"csat_respuestas"`
	CSATDist       [5]int   `json:"csat_distribucion"`

	RebootsExitosos int `json:"reboots_exitosos"`
	RebootsFallidos int `json:"reboots_fallidos"`

	TokensTotal   int64   `json:"tokens_total"`
	CostoEstimado float64 `json:"costo_estimado"`

	CalculadoEn time.Time `json:"calculado_en"`
}

type AlertaSLA struct {
	ID             string     `json:"id"`
	Tipo           string     `json:"tipo"`
	ConversacionID *string    `json:"conversacion_id"`
	Descripcion    string     `json:"descripcion"`
	ValorObservado float64    `json:"valor_observado"`
	Umbral         float64    `json:"umbral"`
	Resuelta       bool       `json:"resuelta"`
	CreadaEn       time.Time  `json:"creada_en"`
	ResueltaEn     *time.Time `json:"resuelta_en"`
}

type FallaONT struct {
	ID                string    `json:"id"`
	SerialONT         string    `json:"serial_ont"`
	Contrato          *string   `json:"contrato"`
	TipoFalla         string    `json:"tipo_falla"`
	SenalDbm          *float64  `json:"senal_dbm"`
	ResueltoConReboot bool      `json:"resuelto_con_reboot"`
	RequirioVisita    bool      `json:"requirio_visita"`
	DetectadaEn       time.Time `json:"detectada_en"`
}

// DispositivoProblema is the derived 30-day view over fallas_ont for one serial.
type DispositivoProblema struct {
	SerialONT         string    `json:"serial_ont"`
	Contrato          *string   `json:"contrato"`
	Fallas            int       `json:"fallas_30d"`
	RebootsExitosos   int       `json:"reboots_exitosos"`
	VisitasRequeridas int       `json:"visitas_requeridas"`
	SenalPromedio     *float64  `json:"senal_promedio"`
	UltimaFalla       time.Time `json:"ultima_falla"`
	Problematico      bool      `json:"problematico"`
}

type Configuracion struct {
	Clave         string    `json:"clave"`
	Tipo          string    `json:"tipo"`
	Valor         string    `json:"valor"`
	Descripcion   string    `json:"descripcion"`
	ActualizadoEn time.Time `json:"actualizado_en"`
}

// SnapshotHoy is the live projection over today's conversations, open or closed.
type SnapshotHoy struct {
	Fecha      string    `json:"fecha"`
	Abiertas   int       `json:"abiertas"`
	Cerradas   int       `json:"cerradas"`
	KPIs       KPIDiario `json:"kpis"`
	GeneradoEn time.Time `json:"generado_en"`
}
