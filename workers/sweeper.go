// workers/sweeper.go
package workers

import (
	"context"
	"fmt"
	"time"

	"habit-progression-engine/logger"

	"github.com/go-co-op/gocron/v2"
)

// RaidSweeper fails expired raids across all guilds.
type RaidSweeper interface {
	SweepExpiredRaids(ctx context.Context) (int, error)
}

// UpgradePruner deletes long-expired guild upgrades.
type UpgradePruner interface {
	PruneExpiredUpgrades(ctx context.Context, grace time.Duration) (int, error)
}

// upgradeGrace keeps expired upgrades around for a day so clients can show them.
const upgradeGrace = 24 * time.Hour

type Sweeper struct {
	log      *logger.Logger
	interval time.Duration
	raids    RaidSweeper
	upgrades UpgradePruner
	sched    gocron.Scheduler
}

func NewSweeper(log *logger.Logger, interval time.Duration, raids RaidSweeper, upgrades UpgradePruner) *Sweeper {
	return &Sweeper{
		log:      log.With("worker", "Sweeper"),
		interval: interval,
		raids:    raids,
		upgrades: upgrades,
	}
}

// Start schedules the sweep every interval until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.RunOnce(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("expired-raid-sweep"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}

	w.sched = sched
	sched.Start()
	w.log.Info("Sweeper started", "interval", w.interval.String())

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			w.log.Warn("Sweeper shutdown", "error", err)
		}
	}()
	return nil
}

// RunOnce performs a single sweep. Errors are logged, not returned, so one bad
// pass never stops the schedule.
func (w *Sweeper) RunOnce(ctx context.Context) (failed, pruned int) {
	n, err := w.raids.SweepExpiredRaids(ctx)
	if err != nil {
		w.log.Error("Raid sweep failed", "error", err)
	}
	failed = n

	if w.upgrades != nil {
		p, err := w.upgrades.PruneExpiredUpgrades(ctx, upgradeGrace)
		if err != nil {
			w.log.Error("Upgrade prune failed", "error", err)
		}
		pruned = p
	}

	if failed > 0 || pruned > 0 {
		w.log.Info("Sweep finished", "raids_failed", failed, "upgrades_pruned", pruned)
	}
	return failed, pruned
}
