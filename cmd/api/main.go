package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/leafpost/leafpost/internal/config"
	"github.com/leafpost/leafpost/internal/handler"
	"github.com/leafpost/leafpost/internal/model/persona"
	"github.com/leafpost/leafpost/internal/remote"
	composeService "github.com/leafpost/leafpost/internal/service/compose"
	"github.com/leafpost/leafpost/internal/service/delivery"
	"github.com/leafpost/leafpost/internal/service/directory"
	"github.com/leafpost/leafpost/internal/service/history"
	"github.com/leafpost/leafpost/internal/service/preview"
	"github.com/leafpost/leafpost/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.Log)

	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, logger)

	personaStore := persona.NewMemoryStore(nil)
	directorySvc := directory.NewService(client, personaStore, logger)

	deliveryLog := history.NewLog()
	submitter := delivery.NewSubmitter(client, deliveryLog, logger)

	guard := session.NewGuard(client, session.Backoff{
		MaxAttempts: cfg.Session.MaxAttempts,
		Delays:      cfg.Session.Delays,
	}, logger)

	engineFactory := func() *preview.Engine {
		return preview.NewEngine(client, cfg.Preview.Debounce, logger)
	}
	composeSvc := composeService.NewService(guard, personaStore, submitter, engineFactory, logger)

	router := handler.NewRouter(directorySvc, composeSvc, deliveryLog, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	logger = logger.Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Msg("leafpost backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
