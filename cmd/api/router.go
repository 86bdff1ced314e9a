package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/ttapp-api/internal/handler"
	internalmiddleware "github.com/noah-isme/ttapp-api/internal/middleware"
	"github.com/noah-isme/ttapp-api/internal/service"
	"github.com/noah-isme/ttapp-api/internal/timetable"
	"github.com/noah-isme/ttapp-api/pkg/config"
	"github.com/noah-isme/ttapp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ttapp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ttapp-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens        internalmiddleware.TokenValidator
	metrics       *service.MetricsService
	timetable     *handler.TimetableHandler
	substitutions *handler.SubstitutionHandler
	ops           *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.metrics, "/metrics"))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix, internalmiddleware.WithResponseMeta(), internalmiddleware.JWT(deps.tokens))
	admin := internalmiddleware.RequireAdmin()

	api.POST("/timetable/generate", admin, deps.timetable.Generate)
	api.POST("/timetable/generate/async", admin, deps.timetable.GenerateAsync)
	api.GET("/timetable/jobs/:id", admin, deps.timetable.JobStatus)
	api.GET("/timetable", deps.timetable.List)
	api.GET("/teachers/:id/timetable", deps.timetable.TeacherTimetable)

	api.GET("/substitutions", deps.substitutions.Suggest)
	api.GET("/absences", deps.substitutions.ListAbsences)
	api.POST("/absences", admin, deps.substitutions.RecordAbsence)
	api.POST("/absences/:id/substitute", admin, deps.substitutions.ConfirmSubstitution)

	return r
}

func ruleConfig(cfg config.TimetableConfig) timetable.RuleConfig {
	rc := timetable.RuleConfig{
		LibrarySubject:    cfg.LibrarySubject,
		GamesSubject:      cfg.GamesSubject,
		DesignatedSubject: cfg.DesignatedSubject,
		Merges:            []timetable.MergePair{},
	}
	if primary, secondary, ok := cfg.MergePair(); ok {
		rc.Merges = append(rc.Merges, timetable.MergePair{Primary: primary, Secondary: secondary})
	}
	return rc
}

func substitutionPolicy(cfg config.SubstitutionConfig) timetable.SubstitutionPolicy {
	return timetable.SubstitutionPolicy{
		QualifiedOnly:       cfg.QualifiedOnly,
		UnqualifiedFallback: cfg.UnqualifiedFallback,
		MaxCandidates:       cfg.MaxCandidates,
	}
}
