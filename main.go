package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/threadline/courier-bridge/internal/server"
	"go.uber.org/zap"
)

var version = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "courier-bridge",
	Short:   "Threadline Courier Bridge - carrier shipment integration service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	RunE:  runServe,
}

var warmCacheCmd = &cobra.Command{
	Use:   "warm-cache",
	Short: "Refresh the carrier city cache once and exit",
	RunE:  runWarmCache,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Perform the initial carrier credential exchange",
	RunE:  runAuth,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(warmCacheCmd)
	rootCmd.AddCommand(authCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	app, err := initApp(cfg, logger, tracer)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Orders == nil {
		return fmt.Errorf("serve requires DATABASE_URL for the orders and settings store")
	}

	if cfg.CacheWarmEnabled {
		warmer := app.CacheWarmer(logger)
		if err := warmer.Start(cfg.CacheWarmSchedule); err != nil {
			logger.Warn("Failed to schedule cache warmer", zap.Error(err))
		} else {
			defer warmer.Stop()
		}
	}

	logger.Info("Starting Threadline Courier Bridge",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
	)

	srv := server.New(server.Config{Port: cfg.Port}, app.Bridge, app.Orders, app.Sync, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runWarmCache(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	app, err := initApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Bridge.Locations().Refresh(ctx)
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	app, err := initApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Bridge.Tokens().Exchange(ctx)
}
