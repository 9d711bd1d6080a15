package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sis-scheduler/scheduler-core/api/swagger"
	"github.com/sis-scheduler/scheduler-core/internal/callback"
	internalhandler "github.com/sis-scheduler/scheduler-core/internal/handler"
	internalmiddleware "github.com/sis-scheduler/scheduler-core/internal/middleware"
	"github.com/sis-scheduler/scheduler-core/internal/persistence"
	"github.com/sis-scheduler/scheduler-core/internal/repository"
	"github.com/sis-scheduler/scheduler-core/internal/service"
	"github.com/sis-scheduler/scheduler-core/pkg/cache"
	"github.com/sis-scheduler/scheduler-core/pkg/config"
	"github.com/sis-scheduler/scheduler-core/pkg/database"
	"github.com/sis-scheduler/scheduler-core/pkg/jobs"
	"github.com/sis-scheduler/scheduler-core/pkg/logger"
	corsmiddleware "github.com/sis-scheduler/scheduler-core/pkg/middleware/cors"
	reqidmiddleware "github.com/sis-scheduler/scheduler-core/pkg/middleware/requestid"
)

// @title Scheduler Core API
// @version 0.1.0
// @description Course scheduling optimization service
// @BasePath /
// @schemes http

func main() {
	bootstrap := zap.NewNop()
	cfg, err := config.Load(bootstrap)
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

	metricsSvc := service.NewMetricsService()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("failed to initialise redis, caching disabled", "error", err)
	}
	var cacheRepo service.CacheRepository
	cacheEnabled := false
	if redisClient != nil {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheEnabled = true
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 10*time.Minute, logr, cacheEnabled)

	signer := callback.NewSigner(cfg.Callback.Secret)
	callbackQueue := callback.NewDeliveryQueue(signer, nil, logr, jobs.QueueConfig{Workers: cfg.API.Workers})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	callbackQueue.Start(ctx)
	defer callbackQueue.Stop()
	notifier := callback.NewNotifier(signer, callbackQueue, logr)
	_ = notifier // reserved: wired once async solve delivery lands, see DESIGN.md

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	healthHandler := internalhandler.NewHealthHandler(db)
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	solveHandler := internalhandler.NewSolveHandler(metricsSvc, logr)
	validateHandler := internalhandler.NewValidateHandler()
	runsHandler := internalhandler.NewRunsHandler()

	solverInputRepo := repository.NewSolverInputRepository(db)
	persister := persistence.NewPersister(db, logr)
	solveFromDBHandler := internalhandler.NewSolveFromDBHandler(solverInputRepo, persister, cacheSvc, metricsSvc, logr)

	r.POST("/solve", solveHandler.Solve)
	r.POST("/validate", validateHandler.Validate)

	solveFromDBGroup := r.Group("")
	solveFromDBGroup.Use(internalmiddleware.WithResponseMeta())
	solveFromDBGroup.POST("/solve-from-db", solveFromDBHandler.SolveFromDB)
	solveFromDBGroup.POST("/solve-from-db/:id/commit", solveFromDBHandler.Commit)

	r.GET("/runs/:id", runsHandler.Get)
	r.POST("/runs/:id/cancel", runsHandler.Cancel)

	srv := &http.Server{
		Addr:         cfg.API.Host + ":" + strconv.Itoa(cfg.API.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // the solver's default time limit is 300s
	}

	logr.Sugar().Infow("scheduler-core listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server error", "error", err)
	}
}
