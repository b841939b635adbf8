package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"makosite/internal/db"
	"makosite/internal/directory"
	"makosite/internal/jobs"
	"makosite/internal/kv"
	"makosite/internal/metrics"
	"makosite/internal/server"
)

var flagSkipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&flagSkipMigrations, "skip-migrations", false, "do not apply database migrations on startup")
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if !flagSkipMigrations {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info("migrations completed")
	}

	// Contact queue
	queue, queueStore, err := openQueue()
	if err != nil {
		return err
	}
	defer queueStore.Close()

	metrics.Init(queue)

	// Link directory
	pool := directory.NewPool(database, logger.Named("directory"))
	defer pool.Close()
	if err := pool.Public().Refresh(ctx); err != nil {
		logger.Warn("initial link load failed", zap.Error(err))
	}

	// Sessions go to Redis when it is configured.
	var sessions fiber.Storage
	if cfg.RedisURL != "" {
		r, err := kv.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect session storage: %w", err)
		}
		defer r.Close()
		sessions = r.Storage()
	}

	srv := server.New(cfg, logger, sessions)
	if err := srv.RegisterRoutes(ctx, server.Deps{
		Pool:     pool,
		Queue:    queue,
		Database: database,
	}); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	monitor := jobs.NewEndpointMonitor(queue, queue, cfg.HealthInterval, logger.Named("monitor"))
	g.Go(func() error {
		monitor.Start(ctx)
		return nil
	})

	g.Go(func() error {
		pool.RunEviction(ctx, time.Minute)
		return nil
	})

	if cfg.RedeliverSchedule != "" {
		stopRedelivery, err := jobs.NewRedeliveryJob(queue, logger.Named("redelivery")).Schedule(ctx, cfg.RedeliverSchedule)
		if err != nil {
			return err
		}
		defer stopRedelivery()
	}

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		if err := srv.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
