package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-bridge/cmd/cli/commands"
	"github.com/jakechorley/shift-bridge/internal/config"
	"github.com/jakechorley/shift-bridge/pkg/core/arbiter"
	"github.com/jakechorley/shift-bridge/pkg/db"
	"github.com/jakechorley/shift-bridge/pkg/postgres"
	"github.com/jakechorley/shift-bridge/pkg/utils/logging"
)

var (
	env        string
	configPath string
	verbose    bool
	app        = &commands.AppContext{}
	closers    []commands.Closer
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shift-bridge",
		Short: "Shift Bridge CLI - Post, claim and approve shifts across facilities and agencies",
		Long:  `A CLI for the shift lifecycle: posting shifts, agency claims, approvals, cancellations and the release/reminder scheduler.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (overrides lookup)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	rootCmd.PersistentFlags().StringVar(&app.Identity.UserID, "as-user", "", "Caller user ID")
	rootCmd.PersistentFlags().StringVar(&app.Identity.Role, "as-role", "", "Caller role: platform_admin, admin, staff, agency_admin, agency_staff")
	rootCmd.PersistentFlags().StringVar(&app.Identity.CompanyID, "as-company", "", "Caller facility or agency ID")

	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.SetRelationshipCmd(app))
	rootCmd.AddCommand(commands.CreateShiftCmd(app))
	rootCmd.AddCommand(commands.UpdateShiftCmd(app))
	rootCmd.AddCommand(commands.ListShiftsCmd(app))
	rootCmd.AddCommand(commands.CancelShiftCmd(app))
	rootCmd.AddCommand(commands.ClaimShiftCmd(app))
	rootCmd.AddCommand(commands.ListClaimsCmd(app))
	rootCmd.AddCommand(commands.MyClaimsCmd(app))
	rootCmd.AddCommand(commands.ApproveClaimCmd(app))
	rootCmd.AddCommand(commands.DenyClaimCmd(app))
	rootCmd.AddCommand(commands.CheckConflictsCmd(app))
	rootCmd.AddCommand(commands.CreateRecurringShiftsCmd(app))
	rootCmd.AddCommand(commands.RunReleaseTickCmd(app))
	rootCmd.AddCommand(commands.RunReminderTickCmd(app))
	rootCmd.AddCommand(commands.SchedulerCmd(app))

	if err := rootCmd.Execute(); err != nil {
		shutdown()
		os.Exit(1)
	}
}

// initApp sets up logger, config, store, event sinks and the arbiter
func initApp() error {
	var err error
	app.Ctx = context.Background()

	app.Logger, err = logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Logger.Debug("Loading configuration", zap.String("path", configPath))
	if configPath != "" {
		app.Cfg, err = config.LoadFromPath(configPath)
	} else {
		app.Cfg, err = config.LoadWithEnv(env)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully", zap.String("store", app.Cfg.Store))

	switch app.Cfg.Store {
	case config.StoreMemory:
		app.Logger.Warn("Using the in-memory store; nothing is persisted after this process exits")
		app.Store = db.NewMemoryStore()
		app.Directory = db.NewStaticDirectory()
	default:
		app.Logger.Info("Connecting to database")
		pg, err := postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, func() { pg.Close() })
		app.Postgres = pg
		app.Store = pg
		app.Directory = pg
		app.Logger.Debug("Database connected")
	}

	if app.Cfg.RedisURL != "" {
		app.Logger.Info("Connecting to redis")
		app.Redis, err = connectRedis(app.Ctx, app.Cfg.RedisURL)
		if err != nil {
			return err
		}
		closers = append(closers, func() { app.Redis.Close() })
	}

	emitter, sinkClosers, err := commands.BuildEmitter(app.Cfg, redisCmdable(app.Redis), app.Logger)
	closers = append(closers, sinkClosers...)
	if err != nil {
		return fmt.Errorf("failed to set up event sinks: %w", err)
	}
	app.Emitter = emitter

	app.Arbiter = arbiter.New(app.Cfg.Checker(), app.Cfg.Policy())
	app.Logger.Debug("Arbiter ready",
		zap.Duration("turnaround", app.Cfg.Turnaround()),
		zap.Bool("block_on_claim_conflict", app.Cfg.BlockOnClaimConflict),
		zap.Bool("block_on_approval_conflict", app.Cfg.BlockOnApprovalConflict))

	return nil
}

func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// redisCmdable keeps a nil client from becoming a non-nil interface
func redisCmdable(client *redis.Client) redis.Cmdable {
	if client == nil {
		return nil
	}
	return client
}

func shutdown() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
	if app.Logger != nil {
		app.Logger.Sync()
	}
}
