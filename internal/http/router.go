package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/fibernet/kpicore/internal/config"
	"github.com/fibernet/kpicore/internal/db"
	"github.com/fibernet/kpicore/internal/http/handlers"
	"github.com/fibernet/kpicore/internal/http/middleware"
	"github.com/fibernet/kpicore/internal/metrics"
	"github.com/fibernet/kpicore/internal/service"
	"github.com/fibernet/kpicore/internal/settings"

	_ "github.com/fibernet/kpicore/docs"
)

type Services struct {
	Settings   *settings.Service
	Aggregator *service.Aggregator
	Evaluator  *service.Evaluator
	Detector   *service.Detector
	Snapshot   *service.Snapshot
}

func Router(cfg config.Config, store *db.Store, svc Services, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:      store,
		Settings:   svc.Settings,
		Aggregator: svc.Aggregator,
		Evaluator:  svc.Evaluator,
		Detector:   svc.Detector,
		Snapshot:   svc.Snapshot,
		Validator:  validator.New(),
		Logger:     logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/kpis/diarios", h.KPIDiariosList)
		api.GET("/kpis/diarios/:fecha", h.KPIDiarioGet)
		api.GET("/kpis/hoy", h.KPIHoy)
		api.GET("/alertas", h.AlertasList)
		api.GET("/dispositivos/problematicos", h.DispositivosProblematicos)
		api.GET("/reportes/kpis.xlsx", h.ReporteKPIs)
		api.GET("/configuracion", h.ConfiguracionList)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/conversaciones", h.ConversacionCrear)
		admin.POST("/conversaciones/:id/mensajes", h.MensajeAgregar)
		admin.POST("/conversaciones/:id/acciones", h.AccionAgregar)
		admin.POST("/conversaciones/:id/cerrar", h.ConversacionCerrar)
		admin.POST("/conversaciones/:id/csat", h.CSATRegistrar)
		admin.POST("/fallas", h.FallaCrear)
		admin.POST("/kpis/recalcular", h.KPIRecalcular)
		admin.POST("/alertas/:id/resolver", h.AlertaResolver)
		admin.PUT("/configuracion/:clave", h.ConfiguracionSet)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
