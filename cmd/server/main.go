package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roomline/roomline-server/internal/app"
	"github.com/roomline/roomline-server/internal/config"
	"github.com/roomline/roomline-server/internal/log"
)

func main() {
	var (
		configPath string
		addr       string
		logLevel   string
		backend    string
	)

	root := &cobra.Command{
		Use:   "roomline-server",
		Short: "Multi-room real-time chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.New(os.Stdout, logLevel)

			cfg, path, err := config.Load(logger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if backend != "" {
				cfg.Storage.Backend = backend
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logger = log.New(os.Stdout, cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}

			logger.Info().Str("addr", cfg.Addr).Str("config", path).Msg("starting roomline server")
			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().StringVar(&backend, "storage", "", "storage backend (memory, sqlite, redis)")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
