package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edupage-sync/api/swagger"
	"github.com/noah-isme/edupage-sync/internal/handler"
	"github.com/noah-isme/edupage-sync/internal/middleware"
	"github.com/noah-isme/edupage-sync/internal/repository"
	"github.com/noah-isme/edupage-sync/internal/service"
	"github.com/noah-isme/edupage-sync/internal/upstream"
	"github.com/noah-isme/edupage-sync/pkg/cache"
	"github.com/noah-isme/edupage-sync/pkg/config"
	"github.com/noah-isme/edupage-sync/pkg/jobs"
	"github.com/noah-isme/edupage-sync/pkg/logger"
	corsmiddleware "github.com/noah-isme/edupage-sync/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edupage-sync/pkg/middleware/requestid"
)

// @title Edupage Sync
// @version 1.0.0
// @description Polls the school portal and serves normalised snapshots and widget fragments
// @BasePath /
// @schemes http

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	store, closeStore, err := repository.OpenStateStore(ctx, cfg, logr)
	if err != nil {
		logr.Error("failed to open state store", zap.Error(err))
		return 1
	}
	defer closeStore() //nolint:errcheck
	state := service.NewStateService(store, metrics, cfg.State.Prefix, logr)

	if err := cfg.Validate(); err != nil {
		logr.Error("invalid configuration, refusing to schedule", zap.Error(err))
		if werr := state.SetConnection(ctx, false); werr != nil {
			logr.Warn("could not record connection flag", zap.Error(werr))
		}
		return 2
	}

	gateway, err := upstream.NewGatewayClient(upstream.GatewayConfig{
		BaseURL: cfg.Upstream.BaseURL,
		School:  cfg.Edupage.School,
		Timeout: cfg.Upstream.Timeout,
	})
	if err != nil {
		logr.Error("failed to build portal client", zap.Error(err))
		_ = state.SetConnection(ctx, false)
		return 1
	}

	resolver := service.NewStudentResolver(cfg.Edupage.StudentFilter, logr)
	session := service.NewSession(gateway, cfg.Edupage.Username, cfg.Edupage.Password, resolver)

	var menu *service.MenuService
	if cfg.Menu.Enabled {
		menuCache := service.NewMenuCache(cache.NewMemory(cfg.Menu.CacheSizeMB), cfg.Menu.CacheTTL)
		menu = service.NewMenuService(gateway, menuCache, metrics, service.MenuServiceConfig{
			School:       cfg.Edupage.School,
			URLTemplates: cfg.Menu.URLTemplates,
		}, logr)
	}

	syncSvc := service.NewSyncService(service.SyncServiceParams{
		State:    state,
		Menu:     menu,
		Teachers: service.NewTeacherAggregator(cfg.Sync.TeacherSource, cfg.Collation(), logr),
		Metrics:  metrics,
		Logger:   logr,
		Config: service.SyncServiceConfig{
			FilterHomeworkDuplicates: cfg.Sync.FilterHomeworkDuplicates,
			MenuEnabled:              cfg.Menu.Enabled,
			WeeklyMenuEnabled:        cfg.Menu.WeeklyEnabled,
			Location:                 cfg.Location(),
		},
	})

	if err := session.Connect(ctx); err != nil {
		logr.Warn("initial portal login failed, retrying on the next cycle", zap.Error(err))
	}
	if err := state.SetConnection(ctx, session.Connected()); err != nil {
		logr.Warn("could not record connection flag", zap.Error(err))
	}

	queue := jobs.NewQueue("sync", func(jobCtx context.Context, job jobs.Job) error {
		trigger, _ := job.Payload.(string)
		report := syncSvc.RunCycle(jobCtx, session, trigger)
		if report.Outcome == service.CycleOutcomeFailed || report.Outcome == service.CycleOutcomePanic {
			return fmt.Errorf("cycle %s %s: %s", report.ID, report.Outcome, report.Error)
		}
		return nil
	}, jobs.QueueConfig{Workers: 1, BufferSize: 1, MaxPending: 1, Logger: logr})
	queue.Start(ctx)

	scheduler := jobs.NewScheduler(queue, jobs.SchedulerConfig{
		Interval:   cfg.Sync.PollInterval,
		JobType:    handler.SyncJobType,
		RunOnStart: true,
		OnSkip:     metrics.RecordSkippedTick,
		Logger:     logr,
	})
	scheduler.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, state, syncSvc, queue, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logr.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			logr.Error("server failed", zap.Error(err))
			exitCode = 1
		}
	}

	scheduler.Stop()
	queue.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	logr.Info("stopped")
	return exitCode
}

func newRouter(cfg *config.Config, logr *zap.Logger, state *service.StateService, syncSvc *service.SyncService, queue *jobs.Queue, metrics *service.MetricsService) *gin.Engine {
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

	health := handler.NewHealthHandler(state)
	r.GET("/health", health.Live)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", handler.NewMetricsHandler(metrics).Prometheus)

	stateHandler := handler.NewStateHandler(state)
	r.GET("/widgets/:name", stateHandler.Widget)

	api := r.Group("/api/v1")
	api.GET("/state/:key", stateHandler.Get)

	syncHandler := handler.NewSyncHandler(queue, syncSvc, metrics)
	api.POST("/sync", syncHandler.Trigger)
	api.GET("/sync/status", syncHandler.Status)

	exportHandler := handler.NewExportHandler(service.NewExportService(state, cfg.Location(), logr, nil, nil))
	api.GET("/export/homework", exportHandler.Homework)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	return r
}
