// Package app wires the store backend, chat engine, and transport together.
package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomline/roomline-server/internal/auth"
	"github.com/roomline/roomline-server/internal/chat"
	"github.com/roomline/roomline-server/internal/config"
	"github.com/roomline/roomline-server/internal/store"
	memorystore "github.com/roomline/roomline-server/internal/store/memory"
	redisstore "github.com/roomline/roomline-server/internal/store/redis"
	sqlitestore "github.com/roomline/roomline-server/internal/store/sqlite"
	transporthttp "github.com/roomline/roomline-server/internal/transport/http"
)

// App owns the server lifecycle.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Str("default_room", st.DefaultRoom()).Msg("store initialized")

	registry := chat.NewRegistry(*logger)
	chatSvc := chat.NewService(st, registry, chat.Policy{
		EnforceAllowedRooms: cfg.Chat.EnforceAllowedRooms,
	}, *logger)
	if err := chatSvc.Bootstrap(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("bootstrap registry: %w", err)
	}

	authSvc := auth.NewService(st, &auth.JWTConfig{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.TTL,
	})

	server := transporthttp.NewServer(chatSvc, authSvc, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	defaultRoom := cfg.Chat.DefaultRoom
	switch cfg.Storage.Backend {
	case "memory":
		return memorystore.New(defaultRoom, cfg.Chat.Rooms...), nil
	case "sqlite":
		return sqlitestore.New(cfg.Storage.Path, defaultRoom, cfg.Chat.Rooms...)
	case "redis":
		return redisstore.New(ctx, cfg.Storage.RedisAddr, defaultRoom, cfg.Chat.Rooms...)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
