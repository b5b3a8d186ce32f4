package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habit-progression-engine/config"
	"habit-progression-engine/handlers"
	"habit-progression-engine/logger"
	"habit-progression-engine/workers"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "progression",
	Short: "Progression & rewards engine for the habit tracker",
	Long: `Turns completed tasks, daily challenges, dungeon missions and guild raids
into experience, levels, streaks, gold, companion growth and guild bonuses.
Every action is rewarded at most once per window.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the expired-raid sweeper",
	RunE:  runServe,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail expired raids and prune stale upgrades once, then exit",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().Duration("timeout", 2*time.Minute, "Give up after this long")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.SweepEnabled {
		sweeper := workers.NewSweeper(log, cfg.SweepInterval, st.services.Raids, st.services.Treasury)
		if err := sweeper.Start(ctx); err != nil {
			return err
		}
	}

	if cfg.SyncServiceURL != "" {
		workers.NewProfileSyncWorker(log, st.services.Progression, cfg.SyncServiceURL,
			"/api/v1/public/profiles", cfg.GameServiceToken, cfg.SyncInterval).Start(ctx)
	}

	app := handlers.NewApp(handlers.AppConfig{
		GatewayToken:   cfg.GameServiceToken,
		AllowedOrigins: cfg.Origins(),
	}, st.services, log)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Error("Server error", "error", err)
			stop()
		}
	}()

	log.Info("✅ Server running", "addr", cfg.HTTPAddr, "db_driver", cfg.DBDriver, "origins", cfg.Origins())
	log.Info("✅ GatewayAuthMiddleware enforced globally")

	<-ctx.Done()
	log.Info("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	st, err := newStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	failed, pruned := workers.NewSweeper(log, cfg.SweepInterval, st.services.Raids, st.services.Treasury).RunOnce(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "raids failed: %d, upgrades pruned: %d\n", failed, pruned)
	return nil
}
