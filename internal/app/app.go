package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/internal/config"
	"github.com/pdplens/pdplens/internal/database"
	"github.com/pdplens/pdplens/internal/middleware"
	"github.com/pdplens/pdplens/internal/modules/reports/archive"
	"github.com/pdplens/pdplens/internal/modules/stats/usage"
	pkgcron "github.com/pdplens/pdplens/internal/pkg/cron"
	"github.com/pdplens/pdplens/internal/pkg/metrics"
	pkgredis "github.com/pdplens/pdplens/internal/pkg/redis"
	"github.com/pdplens/pdplens/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler
	metrics  *metrics.Manager
	recorder *usage.Recorder
	archiver *archive.Service
}

// New initializes the application: config → DB → Redis → workers → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	mm := metrics.Default()

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(mm))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			return originAllowed(patterns, origin)
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	ctx, cancel := context.WithCancel(context.Background())

	recorder := usage.NewRecorder(db, cfg.Audit.BufferSize,
		usage.WithRecorderLogger(logger),
		usage.WithRecorderMetrics(mm))
	go recorder.Run(ctx)

	var archiver *archive.Service
	if cfg.Archive.Enable {
		uploader, err := archive.NewUploader(cfg.Archive)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("archive: %w", err)
		}
		archiver = archive.NewService(uploader, cfg.Archive.BufferSize,
			archive.WithServiceLogger(logger),
			archive.WithServiceMetrics(mm))
		go archiver.Run(ctx)
	}

	taskSvc := taskqueue.NewService(rc)

	sched := pkgcron.New()
	registerCronJobs(sched, db, cfg, taskSvc, logger)
	go sched.Start(ctx)

	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		logger:   logger,
		cancel:   cancel,
		sched:    sched,
		metrics:  mm,
		recorder: recorder,
		archiver: archiver,
	}
	app.registerRoutes(rc, taskSvc)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and waits for the audit and
// archive queues to drain, up to the ctx deadline.
func (a *App) Shutdown(ctx context.Context) {
	a.cancel()
	if a.recorder != nil {
		if err := a.recorder.Shutdown(ctx); err != nil {
			a.logger.Warn("usage recorder did not drain in time", zap.Error(err))
		}
	}
	if a.archiver != nil {
		if err := a.archiver.Shutdown(ctx); err != nil {
			a.logger.Warn("report archiver did not drain in time", zap.Error(err))
		}
	}
}
