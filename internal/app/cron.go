package app

import (
	"context"
	"fmt"
	"time"

	pkgcron "github.com/nekotv/core/internal/pkg/cron"
	sessionpkg "github.com/nekotv/core/internal/pkg/session"
	"go.uber.org/zap"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, sessions *sessionpkg.Manager, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        "purge_expired_tokens",
		Description: "清理已过期的设备令牌",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				cronLogger.Warn("清理过期令牌失败", zap.Error(err))
				return err
			}
			if n > 0 {
				cronLogger.Info(fmt.Sprintf("清理过期令牌成功，共删除 %d 条", n))
			}
			return nil
		},
	})
}
