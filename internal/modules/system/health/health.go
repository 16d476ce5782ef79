package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/internal/pkg/cron"
	redisc "github.com/pdplens/pdplens/internal/pkg/redis"
	"github.com/pdplens/pdplens/internal/pkg/response"
	"gorm.io/gorm"
)

// RegisterPublicRoutes mounts the unauthenticated liveness probe.
func RegisterPublicRoutes(r gin.IRoutes, db *gorm.DB, rdb *redisc.Client) {
	r.GET("/health", func(c *gin.Context) {
		dbOK := false
		if sqlDB, err := db.DB(); err == nil {
			dbOK = sqlDB.Ping() == nil
		}
		redisOK := rdb != nil && rdb.Ping(c.Request.Context()) == nil

		status := "ok"
		code := http.StatusOK
		if !dbOK || !redisOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":   status,
			"database": dbOK,
			"redis":    redisOK,
		})
	})
}

// RegisterAdminRoutes mounts the cron inspection endpoints.
func RegisterAdminRoutes(rg *gin.RouterGroup, sched *cron.Scheduler, authMW gin.HandlerFunc) {
	cronGroup := rg.Group("/health/cron", authMW)
	{
		cronGroup.GET("", func(c *gin.Context) {
			items := sched.List()
			byName := make(map[string]cron.ListItem, len(items))
			for _, item := range items {
				byName[item.Name] = item
			}
			response.OK(c, byName)
		})

		cronGroup.POST("/run/:name", func(c *gin.Context) {
			if err := sched.Run(c.Request.Context(), c.Param("name")); err != nil {
				response.NotFound(c, err.Error())
				return
			}
			response.OK(c, gin.H{"message": "job triggered"})
		})

		cronGroup.GET("/task/:name", func(c *gin.Context) {
			result, err := sched.GetTask(c.Param("name"))
			if err != nil {
				response.NotFound(c, err.Error())
				return
			}
			response.OK(c, result)
		})
	}
}
