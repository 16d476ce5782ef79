package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pdplens/pdplens/internal/config"
	"github.com/pdplens/pdplens/internal/modules/stats/usage"
	pkgcron "github.com/pdplens/pdplens/internal/pkg/cron"
	"github.com/pdplens/pdplens/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, db *gorm.DB, cfg *config.AppConfig, taskSvc *taskqueue.Service, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	if cfg.Audit.RetentionDays > 0 {
		retention := cfg.Audit.RetentionDays
		sched.Register(pkgcron.Job{
			Name:        "cleanup_usage_logs",
			Description: "prune usage log entries past the retention window",
			Interval:    24 * time.Hour,
			Fn: func(ctx context.Context) error {
				cutoff := time.Now().AddDate(0, 0, -retention)
				deleted, err := usage.DeleteOlderThan(db, cutoff)
				if err != nil {
					cronLogger.Warn("usage log cleanup failed", zap.Error(err))
					return err
				}
				cronLogger.Info(fmt.Sprintf("usage log cleanup done, %d rows removed", deleted))
				return nil
			},
		})
	}

	sched.Register(pkgcron.Job{
		Name:        "cleanup_analysis_jobs",
		Description: "drop finished analysis jobs older than a day",
		Interval:    6 * time.Hour,
		Fn: func(ctx context.Context) error {
			before := time.Now().Add(-24 * time.Hour).UnixMilli()
			removed, err := taskSvc.DeleteTerminal(ctx, before)
			if err != nil {
				cronLogger.Warn("analysis job cleanup failed", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("analysis job cleanup done, %d jobs removed", removed))
			return nil
		},
	})
}
