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

	"github.com/robalobadob/wordrush/internal/config"
	"github.com/robalobadob/wordrush/internal/httpserver"
	"github.com/robalobadob/wordrush/internal/session"
	"github.com/robalobadob/wordrush/internal/settings"
)

const shutdownGrace = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	setupLogging(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	tuning, err := settings.Load(cfg.SettingsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load settings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store")
	}
	defer gw.Close()

	if err := seedWords(ctx, gw, cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to seed words")
	}

	hub := httpserver.NewHub(log.Logger)
	ctl := session.New(session.Options{
		Settings:      tuning,
		Store:         gw,
		Publisher:     hub,
		SessionTTL:    cfg.SessionTTL,
		SummaryTTL:    cfg.SummaryTTL,
		StartAttempts: cfg.StartAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		DailySalt:     cfg.DailySalt,
	})
	srv := httpserver.New(ctl, hub, httpserver.Options{
		ClientOrigin:      cfg.ClientOrigin,
		JWTSecret:         cfg.JWTSecret,
		JWTExpires:        cfg.JWTExpires,
		AdminPasswordHash: cfg.AdminPasswordHash,
		Production:        cfg.Production,
		WordsFile:         cfg.WordsFile,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Str("backend", cfg.StoreBackend).Msg("starting wordrush server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	ctl.Close()
	hub.Close()
}

// setupLogging applies LOG_LEVEL and LOG_FORMAT to the global logger.
func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
