// Command regulatord is the control-plane entry point: it wires config,
// the shared store, the catalog connector, and the Rate Regulator's
// background tick loop behind the admin HTTP surface, with graceful
// shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PuneetDabral/crawlreg/canonical"
	"github.com/PuneetDabral/crawlreg/catalog"
	"github.com/PuneetDabral/crawlreg/config"
	"github.com/PuneetDabral/crawlreg/handler"
	"github.com/PuneetDabral/crawlreg/logger"
	"github.com/PuneetDabral/crawlreg/metricsx"
	"github.com/PuneetDabral/crawlreg/redisclient"
	"github.com/PuneetDabral/crawlreg/regulator"
	"github.com/PuneetDabral/crawlreg/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("rate regulator starting")

	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := rc.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("store ping failed")
	}
	log.Info().Msg("store connected")

	metrics := metricsx.New()

	canon := canonical.New(log)
	catalogClient := catalog.New(cfg.CatalogURL, cfg.CatalogTimeout)
	breaker := regulator.NewBreaker(rc.Raw, regulator.BreakerConfig{
		HardHaltSampleSize: cfg.HardHaltSampleSize,
		TempHaltMinSamples: cfg.TempHaltMinSamples,
		TempHaltThresholdRatio: cfg.TempHaltThresholdRatio,
	})
	rate := regulator.RateConfig{
		MinCrawlRPS: cfg.MinCrawlRPS,
		MaxCrawlRPS: cfg.MaxCrawlRPS,
		MaxCrawlSize: int64(cfg.MaxCrawlSize),
	}

	reg := regulator.New(rc.Raw, catalogClient, canon, breaker, rate, cfg.Tick(), cfg.TempHaltTTL(), log, metrics.Registerer())
	reg.Start()

	admin := handler.NewAdmin(rc.Raw, log)
	srv := &http.Server{
		Addr: cfg.AdminAddr,
		Handler: router.New(admin, metrics.Handler(), log),
		ReadTimeout: 10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin surface listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	reg.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := rc.Close(); err != nil {
		log.Error().Err(err).Msg("store close failed")
	}
	log.Info().Msg("rate regulator stopped")
}
