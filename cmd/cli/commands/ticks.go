package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/pkg/core/services"
	"github.com/jakechorley/shift-bridge/pkg/scheduler"
)

// RunReleaseTickCmd creates the runReleaseTick command
func RunReleaseTickCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runReleaseTick",
		Short: "Emit release notifications for tiered shifts past their release time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			released, err := services.RunReleaseTick(app.Ctx, app.Store, app.Emitter, app.Logger, app.Clock())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %d tiered shifts\n", released)
			return nil
		},
	}
}

// RunReminderTickCmd creates the runReminderTick command
func RunReminderTickCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runReminderTick",
		Short: "Remind about open shifts starting soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reminded, err := services.RunReminderTick(app.Ctx, app.Store, app.Emitter, app.Logger, app.Cfg.ReminderWindow(), app.Clock())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d unfilled shift reminders\n", reminded)
			return nil
		},
	}
}

// NewRunner registers the release and reminder ticks on a runner built from config.
// The Redis lock is attached when a lock TTL is configured.
func NewRunner(app *AppContext, clock scheduler.Clock) *scheduler.Runner {
	opts := app.Cfg.SchedulerOptions()
	if app.Cfg.Scheduler.LockTTL > 0 && app.Redis != nil {
		opts.Lock = scheduler.NewRedisLock(app.Redis, app.Cfg.Scheduler.LockKey, app.Cfg.Scheduler.LockTTL)
	}

	runner := scheduler.NewRunner(opts, clock, app.Logger)
	runner.Add("release", func(ctx context.Context, now time.Time) error {
		_, err := services.RunReleaseTick(ctx, app.Store, app.Emitter, app.Logger, now.UTC())
		return err
	})
	runner.Add("reminder", func(ctx context.Context, now time.Time) error {
		_, err := services.RunReminderTick(ctx, app.Store, app.Emitter, app.Logger, app.Cfg.ReminderWindow(), now.UTC())
		return err
	})
	return runner
}

// SchedulerCmd creates the scheduler command
func SchedulerCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the release and reminder ticks until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app.Logger.Info("scheduler command",
				zap.Duration("interval", app.Cfg.Scheduler.TickInterval),
				zap.Duration("lock_ttl", app.Cfg.Scheduler.LockTTL))

			return NewRunner(app, scheduler.RealClock()).Run(ctx)
		},
	}
}
