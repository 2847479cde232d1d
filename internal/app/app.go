package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dtregea/roomchat-server/internal/auth"
	"github.com/dtregea/roomchat-server/internal/config"
	"github.com/dtregea/roomchat-server/internal/console"
	"github.com/dtregea/roomchat-server/internal/core"
	"github.com/dtregea/roomchat-server/internal/store"
	"github.com/dtregea/roomchat-server/internal/store/sqlite"
	transporthttp "github.com/dtregea/roomchat-server/internal/transport/http"
)

// App wires together core, storage and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.CredentialStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. Every
// persisted online flag is forced off here so nobody is stuck online after
// a crash.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	digest := auth.NewBcryptDigest()

	st, err := sqlite.New(cfg.DatabasePath, digest)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.MarkAllOffline(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("mark all offline: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("credential store initialized, all users marked offline")

	hub := core.NewHub(st, digest, logger)
	server := transporthttp.NewServer(hub, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the listener and the administrative console and blocks until
// /END, a termination signal or a fatal listener error.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cons := console.New(a.hub, a.log, os.Stdin, os.Stdout, cancel)
	go func() {
		if err := cons.Run(runCtx); err != nil {
			a.log.Warn().Err(err).Msg("console stopped")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("server is listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		// Unrecoverable listener failure: the one fatal error besides /END.
		a.cleanup()
		return err
	case <-runCtx.Done():
		a.hub.Shutdown(context.Background())

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancelShutdown()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the credential store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
