package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/internal/middleware"
	"github.com/pdplens/pdplens/internal/modules/analysis"
	"github.com/pdplens/pdplens/internal/modules/reports/archive"
	"github.com/pdplens/pdplens/internal/modules/stats/usage"
	"github.com/pdplens/pdplens/internal/modules/system/health"
	"github.com/pdplens/pdplens/internal/pkg/bark"
	pkgredis "github.com/pdplens/pdplens/internal/pkg/redis"
	"github.com/pdplens/pdplens/internal/pkg/response"
	"github.com/pdplens/pdplens/internal/pkg/taskqueue"
)

func (a *App) registerRoutes(rc *pkgredis.Client, taskSvc *taskqueue.Service) {
	r := a.router
	db := a.db
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "")
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":     "pdplens",
		"version":  "1.0.0",
		"homepage": "https://github.com/pdplens/pdplens",
	}

	// Bark push service for rate-limit alerts.
	barkSvc := bark.New(func() (key, serverURL, serviceName string) {
		if !a.cfg.Bark.Enable {
			return "", "", ""
		}
		return a.cfg.Bark.Key, a.cfg.Bark.ServerURL, "pdplens"
	})

	if a.cfg.RateLimit.Enable {
		r.Use(middleware.RateLimit(rc.Raw(), a.cfg.RateLimit, barkSvc))
	}
	r.Use(middleware.Idempotence(rc.Raw()))

	// Root-level endpoints
	health.RegisterPublicRoutes(r, db, rc)
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	// Versioned API
	api := r.Group("/api/v1")
	api.Use(middleware.OptionalAuth())

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptimeMs := time.Since(processStart).Milliseconds()
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptimeMs,
			"humanize":  humanizeDuration(time.Duration(uptimeMs) * time.Millisecond),
		})
	})

	// Analysis
	upstream := analysis.NewUpstreamClient(a.cfg.Upstream.BaseURL,
		analysis.WithUpstreamLogger(a.logger),
		analysis.WithUpstreamMetrics(a.metrics))

	svcOpts := []analysis.ServiceOption{
		analysis.WithServiceLogger(a.logger),
		analysis.WithAuditor(a.recorder),
	}
	if a.archiver != nil {
		svcOpts = append(svcOpts, analysis.WithArchiver(a.archiver))
	}
	svc := analysis.NewService(upstream, svcOpts...)

	authVariant := analysis.AuthenticatedVariant(a.cfg.Upstream)
	analysis.NewHandler(svc, authVariant).RegisterRoutes(api, authMW)
	analysis.NewJobsHandler(svc, authVariant, taskSvc,
		analysis.WithJobsLogger(a.logger),
		analysis.WithJobsMetrics(a.metrics)).RegisterRoutes(api, authMW)

	// Trial runs without tokens, without audit and on much shorter budgets.
	if a.cfg.TrialEnabled {
		trial := api.Group("/trial")
		analysis.NewHandler(svc, analysis.TrialVariant(a.cfg.Upstream)).RegisterRoutes(trial, authMW)
	}

	// Admin
	admin := api.Group("/admin")
	usage.NewHandler(db, a.cfg.Audit.RetentionDays).RegisterRoutes(admin, authMW)
	if a.archiver != nil {
		archive.NewHandler(a.archiver).RegisterRoutes(admin, authMW)
	}
	health.RegisterAdminRoutes(admin, a.sched, authMW)
}
