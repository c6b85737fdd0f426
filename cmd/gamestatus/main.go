// main is the entry point of the gamestatus service.
// It initializes the configuration, logger, database, GeoIP provider and query
// service, then either runs a one-shot maintenance task or starts the HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/config"
	"github.com/woozymasta/gamestatus/internal/fake"
	"github.com/woozymasta/gamestatus/internal/fivem"
	"github.com/woozymasta/gamestatus/internal/game"
	"github.com/woozymasta/gamestatus/internal/geoip"
	"github.com/woozymasta/gamestatus/internal/logger"
	"github.com/woozymasta/gamestatus/internal/maintenance"
	"github.com/woozymasta/gamestatus/internal/server"
	"github.com/woozymasta/gamestatus/internal/storage"
	"github.com/woozymasta/gamestatus/internal/vars"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Str("version", vars.Version).Str("commit", vars.CommitShort()).Msg("starting gamestatus...")
	log.Debug().Interface("build", vars.Info()).Msg("build info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GeoIP
	geoProvider, err := geoip.Setup(ctx, cfg.GeoIP)
	if err != nil {
		log.Error().Err(err).Msg("failed to open GeoIP database, country detection disabled")
		geoProvider = nil
	}
	defer func() {
		if err := geoProvider.Close(); err != nil {
			log.Error().Err(err).Msg("error closing GeoIP provider")
		}
	}()

	// Query service
	fm := fivem.New(fivem.Options{
		BaseURL:   cfg.FiveM.URL,
		CfxURL:    cfg.FiveM.CfxURL,
		IconURL:   cfg.FiveM.IconURL,
		Timeout:   cfg.FiveM.Timeout,
		UserAgent: vars.UserAgent(),
	})

	var geo game.CountryResolver
	if geoProvider != nil {
		geo = geoProvider
	}
	svc := game.New(cfg.Query, fm, geo)

	// One-off query needs no database
	if cfg.Storage.Query != "" {
		maintenance.Run(ctx, cfg, nil, svc, os.Stdout)
		return
	}

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database")
		}
	}()

	// data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(store, cfg.Storage.GenerateCount)
		return
	}
	if maintenance.Run(ctx, cfg, store, svc, os.Stdout) {
		return
	}

	// Init server
	srv := server.New(store, svc, cfg)
	srv.StartWorkers()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		// status/all may wait for several query timeouts
		WriteTimeout: 4*cfg.Query.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srv.StopWorkers()

	log.Info().Msg("server exited")
}
