package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/fibernet/kpicore/internal/db"
	"github.com/fibernet/kpicore/internal/kpi"
	"github.com/fibernet/kpicore/internal/models"
	"github.com/fibernet/kpicore/internal/report"
	"github.com/fibernet/kpicore/internal/service"
	"github.com/fibernet/kpicore/internal/settings"
)

type Handler struct {
	Store      *db.Store
	Settings   *settings.Service
	Aggregator *service.Aggregator
	Evaluator  *service.Evaluator
	Detector   *service.Detector
	Snapshot   *service.Snapshot
	Validator  *validator.Validate
	Logger     zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := contextWithTimeout(c, 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ── Conversation ingest ──

type ConversacionRequest struct {
	Telefono     string     `json:"telefono" validate:"required"`
	Contrato     *string    `json:"contrato"`
	Nombre       *string    `json:"nombre"`
	SerialONT    *string    `json:"serial_ont"`
	SenalInicial *float64   `json:"senal_inicial"`
	IniciadaEn   *time.Time `json:"iniciada_en"`
}

// @Summary Register a new support conversation
// @Tags conversaciones
// @Accept json
// @Produce json
// @Success 201 {object} map[string]any
// @Router /api/conversaciones [post]
func (h *Handler) ConversacionCrear(c *gin.Context) {
	var req ConversacionRequest
	if !h.bind(c, &req) {
		return
	}

	conv := models.Conversacion{
		Telefono:     req.Telefono,
		Contrato:     req.Contrato,
		Nombre:       req.Nombre,
		SerialONT:    req.SerialONT,
		SenalInicial: req.SenalInicial,
	}
	if req.IniciadaEn != nil {
		conv.IniciadaEn = *req.IniciadaEn
	}
	id, err := h.Store.CrearConversacion(c.Request.Context(), conv)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create conversation", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type MensajeRequest struct {
	Rol        string     `json:"rol" validate:"required,oneof=cliente agente sistema"`
	Contenido  string     `json:"contenido" validate:"required"`
	Fase       *string    `json:"fase"`
	Tokens     int        `json:"tokens" validate:"gte=0"`
	LatenciaMs int        `json:"latencia_ms" validate:"gte=0"`
	EnviadoEn  *time.Time `json:"enviado_en"`
}

func (h *Handler) MensajeAgregar(c *gin.Context) {
	var req MensajeRequest
	if !h.bind(c, &req) {
		return
	}
	convID := c.Param("id")
	if !h.conversacionExiste(c, convID) {
		return
	}

	m := models.Mensaje{
		ConversacionID: convID,
		Rol:            req.Rol,
		Contenido:      req.Contenido,
		Fase:           req.Fase,
		Tokens:         req.Tokens,
		LatenciaMs:     req.LatenciaMs,
	}
	if req.EnviadoEn != nil {
		m.EnviadoEn = *req.EnviadoEn
	}
	id, err := h.Store.AgregarMensaje(c.Request.Context(), m)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to append message", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type AccionRequest struct {
	Tipo        string          `json:"tipo" validate:"required,oneof=consulta reboot crear_ticket cerrar_ticket encuesta_csat notificar_tecnico"`
	Sistema     string          `json:"sistema" validate:"required"`
	Metodo      *string         `json:"metodo"`
	Endpoint    *string         `json:"endpoint"`
	Payload     json.RawMessage `json:"payload"`
	Respuesta   json.RawMessage `json:"respuesta"`
	Exitosa     *bool           `json:"exitosa"`
	Error       *string         `json:"error"`
	LatenciaMs  int             `json:"latencia_ms" validate:"gte=0"`
	Tokens      int             `json:"tokens" validate:"gte=0"`
	EjecutadaEn *time.Time      `json:"ejecutada_en"`
}

func (h *Handler) AccionAgregar(c *gin.Context) {
	var req AccionRequest
	if !h.bind(c, &req) {
		return
	}
	convID := c.Param("id")
	if !h.conversacionExiste(c, convID) {
		return
	}

	a := models.Accion{
		ConversacionID: convID,
		Tipo:           req.Tipo,
		Sistema:        req.Sistema,
		Metodo:         req.Metodo,
		Endpoint:       req.Endpoint,
		Payload:        req.Payload,
		Respuesta:      req.Respuesta,
		Exitosa:        req.Exitosa == nil || *req.Exitosa,
		Error:          req.Error,
		LatenciaMs:     req.LatenciaMs,
		Tokens:         req.Tokens,
	}
	if req.EjecutadaEn != nil {
		a.EjecutadaEn = *req.EjecutadaEn
	}
	id, err := h.Store.AgregarAccion(c.Request.Context(), a)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to log action", err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type CierreRequest struct {
	CategoriaResolucion string     `json:"categoria_resolucion" validate:"required,oneof=resuelta_ia visita_tecnica suspension_facturacion falla_masiva"`
	FaseFinal           *string    `json:"fase_final"`
	TicketID            *string    `json:"ticket_id"`
	SenalFinal          *float64   `json:"senal_final"`
	RebootEjecutado     bool       `json:"reboot_ejecutado"`
	CerradaEn           *time.Time `json:"cerrada_en"`
	CSAT                *int       `json:"csat" validate:"omitempty,min=1,max=5"`
}

// @Summary Close a conversation and freeze its KPI fields
// @Tags conversaciones
// @Accept json
// @Produce json
// @Success 200 {object} models.Conversacion
// @Failure 409 {object} map[string]any
// @Router /api/conversaciones/{id}/cerrar [post]
func (h *Handler) ConversacionCerrar(c *gin.Context) {
	var req CierreRequest
	if !h.bind(c, &req) {
		return
	}
	convID := c.Param("id")
	ctx := c.Request.Context()

	conv, err := h.Store.GetConversacion(ctx, convID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load conversation", err.Error())
		return
	}

	mensajes, err := h.Store.ListMensajes(ctx, convID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load messages", err.Error())
		return
	}
	acciones, err := h.Store.ListAcciones(ctx, convID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load actions", err.Error())
		return
	}

	cerradaEn := time.Now().UTC()
	if req.CerradaEn != nil {
		cerradaEn = *req.CerradaEn
	}

	medidas, err := kpi.CalcularCierre(conv, mensajes, acciones, req.CategoriaResolucion, cerradaEn)
	if err != nil {
		if errors.Is(err, kpi.ErrMissingRequiredField) {
			if mErr := h.Store.MarcarRevisionManual(ctx, convID); mErr != nil {
				h.Logger.Error().Err(mErr).Str("conversacion_id", convID).Msg("failed to flag conversation for review")
			}
			writeError(c, http.StatusUnprocessableEntity, "MISSING_REQUIRED_FIELD", "Conversation cannot be measured, flagged for review", err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "KPI_ERROR", "KPI computation failed", err.Error())
		return
	}

	err = h.Store.CerrarConversacion(ctx, convID, db.Cierre{
		FaseFinal:           req.FaseFinal,
		CategoriaResolucion: req.CategoriaResolucion,
		TicketID:            req.TicketID,
		SenalFinal:          req.SenalFinal,
		RebootEjecutado:     req.RebootEjecutado,
		CerradaEn:           cerradaEn,
		FRTSeg:              medidas.FRTSeg,
		TTRMin:              &medidas.TTRMin,
		FCR:                 medidas.FCR,
		CSAT:                req.CSAT,
	})
	if err != nil {
		if errors.Is(err, db.ErrAlreadyClosed) {
			writeError(c, http.StatusConflict, "ALREADY_CLOSED", "Conversation already closed", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to close conversation", err.Error())
		return
	}

	cerrada, err := h.Store.GetConversacion(ctx, convID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reload conversation", err.Error())
		return
	}

	// Close-time SLA checks are best-effort: the close itself already stuck.
	if err := h.Evaluator.EvaluarConversacion(ctx, cerrada); err != nil {
		h.Logger.Error().Err(err).Str("conversacion_id", convID).Msg("close-time sla evaluation failed")
	}

	c.JSON(http.StatusOK, cerrada)
}

type CSATRequest struct {
	Puntaje int `json:"puntaje" validate:"required,min=1,max=5"`
}

func (h *Handler) CSATRegistrar(c *gin.Context) {
	var req CSATRequest
	if !h.bind(c, &req) {
		return
	}
	convID := c.Param("id")
	if !h.conversacionExiste(c, convID) {
		return
	}

	actualizado, err := h.Store.SetCSAT(c.Request.Context(), convID, req.Puntaje)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store CSAT", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"actualizado": actualizado})
}

// ── Hardware failures ──

type FallaRequest struct {
	SerialONT         string     `json:"serial_ont" validate:"required"`
	Contrato          *string    `json:"contrato"`
	TipoFalla         string     `json:"tipo_falla" validate:"omitempty,oneof=offline senal_baja intermitente"`
	SenalDbm          *float64   `json:"senal_dbm"`
	ResueltoConReboot bool       `json:"resuelto_con_reboot"`
	RequirioVisita    bool       `json:"requirio_visita"`
	DetectadaEn       *time.Time `json:"detectada_en"`
}

// @Summary Ingest an ONT failure event
// @Tags fallas
// @Accept json
// @Produce json
// @Success 201 {object} map[string]any
// @Router /api/fallas [post]
func (h *Handler) FallaCrear(c *gin.Context) {
	var req FallaRequest
	if !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	tipo := req.TipoFalla
	if tipo == "" {
		tipo = h.clasificarFalla(c, req.SenalDbm)
	}

	f := models.FallaONT{
		SerialONT:         req.SerialONT,
		Contrato:          req.Contrato,
		TipoFalla:         tipo,
		SenalDbm:          req.SenalDbm,
		ResueltoConReboot: req.ResueltoConReboot,
		RequirioVisita:    req.RequirioVisita,
	}
	if req.DetectadaEn != nil {
		f.DetectadaEn = *req.DetectadaEn
	}
	id, err := h.Store.CrearFalla(ctx, f)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store failure event", err.Error())
		return
	}

	var dispositivo *models.DispositivoProblema
	if d, err := h.Detector.Revisar(ctx, req.SerialONT, time.Now()); err != nil {
		h.Logger.Error().Err(err).Str("serial_ont", req.SerialONT).Msg("recurrence recomputation failed")
	} else {
		dispositivo = &d
	}
	if _, err := h.Evaluator.EvaluarFallaMasiva(ctx, time.Now()); err != nil {
		h.Logger.Error().Err(err).Msg("mass outage evaluation failed")
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "dispositivo": dispositivo})
}

// clasificarFalla picks a failure type when the monitor does not send one: a
// reading outside the configured optical window means degraded signal.
func (h *Handler) clasificarFalla(c *gin.Context, senal *float64) string {
	if senal == nil {
		return models.FallaOffline
	}
	minimo, errMin := h.Settings.Float(c.Request.Context(), settings.ClaveSenalMinima)
	maximo, errMax := h.Settings.Float(c.Request.Context(), settings.ClaveSenalMaxima)
	if errMin != nil || errMax != nil {
		return models.FallaSenalBaja
	}
	if *senal < minimo || *senal > maximo {
		return models.FallaSenalBaja
	}
	return models.FallaIntermitente
}

// ── KPI reads ──

func (h *Handler) KPIDiariosList(c *gin.Context) {
	items, err := h.Store.ListKPIDiarios(c.Request.Context(), c.Query("desde"), c.Query("hasta"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list rollups", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) KPIDiarioGet(c *gin.Context) {
	fecha := c.Param("fecha")
	if _, err := time.Parse("2006-01-02", fecha); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "fecha must be YYYY-MM-DD", nil)
		return
	}
	k, err := h.Store.GetKPIDiario(c.Request.Context(), fecha)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No rollup for date", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load rollup", err.Error())
		return
	}
	c.JSON(http.StatusOK, k)
}

// @Summary Live metrics for today
// @Tags kpis
// @Produce json
// @Success 200 {object} models.SnapshotHoy
// @Router /api/kpis/hoy [get]
func (h *Handler) KPIHoy(c *gin.Context) {
	snap, err := h.Snapshot.Hoy(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "SNAPSHOT_ERROR", "Failed to compute snapshot", err.Error())
		return
	}
	c.JSON(http.StatusOK, snap)
}

type RecalcularRequest struct {
	Fecha string `json:"fecha" validate:"required,datetime=2006-01-02"`
}

// @Summary Recompute the rollup for a date
// @Tags kpis
// @Accept json
// @Produce json
// @Success 200 {object} models.KPIDiario
// @Router /api/kpis/recalcular [post]
func (h *Handler) KPIRecalcular(c *gin.Context) {
	var req RecalcularRequest
	if !h.bind(c, &req) {
		return
	}

	k, err := h.Aggregator.RunFecha(c.Request.Context(), req.Fecha)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "AGGREGATION_ERROR", "Rollup computation failed", err.Error())
		return
	}
	if err := h.Evaluator.EvaluarConversacionesDia(c.Request.Context(), req.Fecha); err != nil {
		h.Logger.Error().Err(err).Str("fecha", req.Fecha).Msg("close-time sla re-evaluation failed")
	}
	if err := h.Evaluator.EvaluarDia(c.Request.Context(), k); err != nil {
		h.Logger.Error().Err(err).Str("fecha", req.Fecha).Msg("day-level sla evaluation failed")
	}
	c.JSON(http.StatusOK, k)
}

// ── Alerts ──

func (h *Handler) AlertasList(c *gin.Context) {
	var resuelta *bool
	if raw := c.Query("resuelta"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "resuelta must be boolean", nil)
			return
		}
		resuelta = &v
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListAlertas(c.Request.Context(), resuelta, strings.TrimSpace(c.Query("tipo")), limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list alerts", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) AlertaResolver(c *gin.Context) {
	err := h.Store.ResolverAlerta(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No open alert with that id", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to resolve alert", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resuelta"})
}

// ── Devices ──

func (h *Handler) DispositivosProblematicos(c *gin.Context) {
	items, err := h.Detector.Dispositivos(c.Request.Context(), time.Now())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to compute device view", err.Error())
		return
	}
	if c.DefaultQuery("solo_problematicos", "true") == "true" {
		filtrados := items[:0]
		for _, d := range items {
			if d.Problematico {
				filtrados = append(filtrados, d)
			}
		}
		items = filtrados
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ── Reports ──

func (h *Handler) ReporteKPIs(c *gin.Context) {
	rollups, err := h.Store.ListKPIDiarios(c.Request.Context(), c.Query("desde"), c.Query("hasta"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list rollups", err.Error())
		return
	}
	f, err := report.KPIsXLSX(rollups)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "REPORT_ERROR", "Failed to build report", err.Error())
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="kpis.xlsx"`)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		h.Logger.Error().Err(err).Msg("report stream failed")
	}
}

// ── Configuration ──

func (h *Handler) ConfiguracionList(c *gin.Context) {
	items, err := h.Store.ListConfiguracion(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list settings", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type ConfiguracionRequest struct {
	Tipo        string `json:"tipo" validate:"required,oneof=texto entero decimal booleano json"`
	Valor       string `json:"valor" validate:"required"`
	Descripcion string `json:"descripcion"`
}

func (h *Handler) ConfiguracionSet(c *gin.Context) {
	var req ConfiguracionRequest
	if !h.bind(c, &req) {
		return
	}
	if err := validarValor(req.Tipo, req.Valor); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "valor does not match tipo", err.Error())
		return
	}

	cfg := models.Configuracion{
		Clave:       c.Param("clave"),
		Tipo:        req.Tipo,
		Valor:       req.Valor,
		Descripcion: req.Descripcion,
	}
	if err := h.Store.SetConfiguracion(c.Request.Context(), cfg); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store setting", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func validarValor(tipo, valor string) error {
	switch tipo {
	case settings.TipoEntero:
		_, err := strconv.Atoi(valor)
		return err
	case settings.TipoDecimal:
		_, err := strconv.ParseFloat(valor, 64)
		return err
	case settings.TipoBooleano:
		_, err := strconv.ParseBool(valor)
		return err
	case settings.TipoJSON:
		return validarJSON(valor)
	default:
		return nil
	}
}
