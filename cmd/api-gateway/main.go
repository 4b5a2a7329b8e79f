package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/workbridge/engage-api/api/swagger"
	"github.com/workbridge/engage-api/internal/handler"
	"github.com/workbridge/engage-api/internal/middleware"
	"github.com/workbridge/engage-api/internal/repository"
	"github.com/workbridge/engage-api/internal/service"
	"github.com/workbridge/engage-api/pkg/cache"
	"github.com/workbridge/engage-api/pkg/config"
	"github.com/workbridge/engage-api/pkg/database"
	"github.com/workbridge/engage-api/pkg/logger"
	corsmiddleware "github.com/workbridge/engage-api/pkg/middleware/cors"
	reqidmiddleware "github.com/workbridge/engage-api/pkg/middleware/requestid"
	"github.com/workbridge/engage-api/pkg/storage"
)

// @title Engage API
// @version 1.0.0
// @description Engagement marketplace: postings, applications, enrollment, deliverables, and scoped collaboration.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()
	metrics := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	actorRepo := repository.NewActorRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	deliverableRepo := repository.NewDeliverableRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	actorService := service.NewActorService(actorRepo, cfg.JWT.Secret, validate, logr)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Applications: applicationRepo,
		Engagements:  engagementRepo,
		Deliverables: deliverableRepo,
		Messages:     messageRepo,
		Profiles:     actorService,
		Cache:        cacheService,
		Logger:       logr,
		CacheTTL:     cfg.Dashboard.CacheTTL,
	})
	engagementService := service.NewEngagementService(engagementRepo, dashboardService, validate, logr)
	applicationService := service.NewApplicationService(applicationRepo, engagementRepo, dashboardService, validate, logr)

	artifactStore, err := storage.NewLocalStorage(cfg.Artifacts.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init artifact storage", "error", err)
	}
	deliverableService := service.NewDeliverableService(deliverableRepo, enrollmentRepo, engagementRepo, artifactStore, validate, logr)
	collaborationService := service.NewCollaborationService(engagementRepo, enrollmentRepo, resourceRepo, messageRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportRepo := repository.NewExportJobRepository(db)
		exportService := service.NewExportService(exportRepo, applicationRepo, engagementRepo, exportStore, signer, service.ExportConfig{
			APIPrefix:  cfg.APIPrefix,
			ResultTTL:  cfg.Exports.SignedURLTTL,
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
		}, logr)
		exportService.Start(ctx)
		defer exportService.Stop()
		exportHandler = handler.NewExportHandler(exportService)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/snapshot", metricsHandler.Snapshot)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, middleware.JWT(actorService), middleware.OptionalJWT(actorService), handler.Handlers{
		Engagements:   handler.NewEngagementHandler(engagementService),
		Applications:  handler.NewApplicationHandler(applicationService),
		Deliverables:  handler.NewDeliverableHandler(deliverableService, cfg.Artifacts.MaxFileSizeBytes),
		Collaboration: handler.NewCollaborationHandler(collaborationService),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Profiles:      handler.NewProfileHandler(actorService),
		Exports:       exportHandler,
		Metrics:       metricsHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
