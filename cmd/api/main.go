package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ttapp-api/api/swagger"
	"github.com/noah-isme/ttapp-api/internal/handler"
	"github.com/noah-isme/ttapp-api/internal/repository"
	"github.com/noah-isme/ttapp-api/internal/service"
	"github.com/noah-isme/ttapp-api/internal/timetable"
	"github.com/noah-isme/ttapp-api/pkg/cache"
	"github.com/noah-isme/ttapp-api/pkg/config"
	"github.com/noah-isme/ttapp-api/pkg/database"
	"github.com/noah-isme/ttapp-api/pkg/logger"
	"github.com/noah-isme/ttapp-api/pkg/telemetry"
)

// @title Timetable API
// @version 1.0.0
// @description Weekly timetable generation and same-day substitution suggestions
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, nil)
	if err != nil {
		logr.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	readiness := map[string]handler.ReadinessCheck{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, suggestion cache disabled", zap.Error(err))
	} else {
		repo := repository.NewCacheRepository(redisClient, logr)
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
		readiness["redis"] = repo.Ping
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Substitution.CacheTTL, logr, cfg.Substitution.CacheEnabled)

	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)

	rules := timetable.NewRuleTable(ruleConfig(cfg.Timetable))

	timetableSvc := service.NewTimetableService(
		db,
		classRepo,
		subjectRepo,
		teacherRepo,
		slotRepo,
		timetable.NewGenerator(rules),
		cacheSvc,
		metrics,
		validate,
		logr.Named("timetable"),
		service.TimetableServiceConfig{LockKey: cfg.Timetable.AdvisoryLockKey, Timeout: cfg.Timetable.GenerationTimeout},
	)
	substitutionSvc := service.NewSubstitutionService(
		db,
		absenceRepo,
		teacherRepo,
		subjectRepo,
		slotRepo,
		timetable.NewResolver(rules, substitutionPolicy(cfg.Substitution)),
		cacheSvc,
		metrics,
		validate,
		logr.Named("substitution"),
		cfg.Substitution.CacheTTL,
	)
	absenceSvc := service.NewAbsenceService(absenceRepo, teacherRepo, cacheSvc, validate, logr.Named("absence"))

	dispatcher := service.NewGenerationDispatcher(timetableSvc, logr.Named("jobs"), service.GenerationDispatcherConfig{
		BufferSize: cfg.Jobs.QueueBuffer,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		ResultTTL:  cfg.Jobs.ResultTTL,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	router := newRouter(cfg, logr, routerDeps{
		tokens:        service.NewTokenService(cfg.JWT.Secret),
		metrics:       metrics,
		timetable:     handler.NewTimetableHandler(timetableSvc, dispatcher),
		substitutions: handler.NewSubstitutionHandler(substitutionSvc, absenceSvc),
		ops:           handler.NewMetricsHandler(metrics, readiness),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
