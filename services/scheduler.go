// services/scheduler.go
package services

import (
	"log"
	"time"

	"training-arena-system/config"

	"github.com/go-co-op/gocron/v2"
)

// StartCleanupSweeper runs the two independent expiry sweeps on a
// fixed period: overdue queue entries and stale sessions. Each sweep
// claims entities through the same locks as live calls, so running
// alongside normal traffic is safe.
func StartCleanupSweeper(cfg *config.Config, queue *QueueService, arena *ArenaService, metrics *MetricsService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() {
			now := time.Now()
			if dropped := queue.SweepExpired(now); dropped > 0 && metrics != nil {
				metrics.RecordQueueExpiries(dropped)
			}
			arena.SweepExpired(now)
		}),
	)

	log.Printf("🧹 Cleanup sweeper running (every %s)", cfg.SweepInterval)
}
