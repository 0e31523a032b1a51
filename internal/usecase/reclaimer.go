package usecase

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/go-co-op/gocron"

	drepo "KlineFeed/internal/domain/repository"
	"KlineFeed/pkg/logger"
)

// ResourceReclaimer periodically forces a memory reclamation pass. The
// decode loops churn through thousands of small allocations per second;
// over a multi-day run the idle heap the runtime keeps around adds up,
// so once an hour we hand it back to the OS and log a heartbeat.
type ResourceReclaimer struct {
	period  time.Duration
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewResourceReclaimer(period time.Duration, metrics drepo.Metrics, log *logger.Logger) *ResourceReclaimer {
	if period <= 0 {
		period = time.Hour
	}
	return &ResourceReclaimer{period: period, metrics: metrics, log: log}
}

// Run schedules the reclamation pass and blocks until ctx is cancelled.
func (r *ResourceReclaimer) Run(ctx context.Context) {
	sched := gocron.NewScheduler(time.UTC)
	_, err := sched.Every(r.period).Do(func() {
		start := time.Now()
		debug.FreeOSMemory()
		r.metrics.RecordReclaim()
		r.log.Info("memory reclaim pass complete",
			logger.Duration("took", time.Since(start)))
	})
	if err != nil {
		r.log.Error("reclaimer schedule failed", logger.Error(err))
		<-ctx.Done()
		return
	}

	sched.StartAsync()
	<-ctx.Done()
	sched.Stop()
}
