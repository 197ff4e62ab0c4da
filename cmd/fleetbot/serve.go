package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/fleetbot/internal/container"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the admin API and the background workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireLark(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting fleet bot",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("session_backend", cfg.Session.Backend))

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	containerCfg, err := cfg.ToContainerConfig()
	if err != nil {
		return err
	}
	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	server := c.HTTPServer()
	adapter := c.LarkAdapter()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		defer adapter.Stop()
		return adapter.Start(gctx)
	})

	err = g.Wait()
	logger.Info("Shutting down fleet bot")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
