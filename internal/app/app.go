package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirebot/internal/adapter/wirechat"
	"github.com/vovakirdan/wirebot/internal/auth"
	"github.com/vovakirdan/wirebot/internal/backend"
	"github.com/vovakirdan/wirebot/internal/config"
	"github.com/vovakirdan/wirebot/internal/history"
	"github.com/vovakirdan/wirebot/internal/log"
	"github.com/vovakirdan/wirebot/internal/metrics"
	"github.com/vovakirdan/wirebot/internal/store"
	"github.com/vovakirdan/wirebot/internal/store/sqlite"
	"github.com/vovakirdan/wirebot/internal/transfer"
	transporthttp "github.com/vovakirdan/wirebot/internal/transport/http"
)

// App wires the backend, its supporting stores and the status server.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	backend         *wirechat.Adapter
	store           store.Store
	transfers       *transfer.Manager
	history         *history.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	m := metrics.New()
	hist := history.NewStore(cfg.HistorySize)
	transfers := transfer.NewManager(st, m, log.Component(logger, "transfer"))

	rt := backend.NewRuntime(log.Component(logger, "runtime"),
		backend.WithHandler(newDispatcher(logger, hist, transfers)),
		backend.WithBackoff(cfg.Reconnect),
		backend.WithMetrics(m),
		backend.WithHistory(hist),
		backend.WithStreamTracker(transfers),
	)

	adapter := wirechat.New(adapterConfig(cfg), rt, logger)

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		backend:         adapter,
		store:           st,
		transfers:       transfers,
		history:         hist,
		log:             logger,
	}

	// An empty address disables the status server.
	if cfg.StatusAddr != "" {
		a.server = transporthttp.NewServer(cfg.StatusAddr, transporthttp.Deps{
			Bot:       adapter,
			Transfers: transfers,
			Ledger:    st,
			History:   hist,
			Metrics:   m,
		}, log.Component(logger, "http"))
	}
	return a, nil
}

func adapterConfig(cfg *config.Config) wirechat.Config {
	return wirechat.Config{
		URL:   cfg.Adapter.URL,
		User:  cfg.Adapter.User,
		Rooms: cfg.Adapter.Rooms,
		JWT: auth.JWTConfig{
			Secret:   []byte(cfg.Adapter.Token.Secret),
			Issuer:   cfg.Adapter.Token.Issuer,
			Audience: cfg.Adapter.Token.Audience,
			TTL:      cfg.Adapter.Token.TTL,
		},
		SendRate:    cfg.Adapter.SendRate,
		SendBurst:   cfg.Adapter.SendBurst,
		DialTimeout: cfg.Adapter.DialTimeout,
	}
}

// Backend is the chat backend driven by Run.
func (a *App) Backend() backend.Backend {
	return a.backend
}

// History is the per user command history.
func (a *App) History() *history.Store {
	return a.history
}

// Transfers tracks in-flight streams.
func (a *App) Transfers() *transfer.Manager {
	return a.transfers
}

// Run serves the backend and the status server until ctx is cancelled or
// the backend stops, then shuts the status server down and closes the store.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		a.log.Info().Str("mode", a.backend.Mode()).Msg("starting backend")
		return a.backend.ServeForever(gctx)
	})

	if a.server != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.server.Addr).Msg("status server listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancelShutdown()

			a.log.Info().Msg("shutting down status server")
			return a.server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
