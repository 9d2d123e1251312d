package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Teleop/internal/adapters/ws"
	"github.com/dkeye/Teleop/internal/config"
	"github.com/dkeye/Teleop/internal/relay"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config.InitLogging()
	cfg, err := config.Load("relay", os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.ApplyLogLevel()

	hub := relay.NewHub(cfg.Relay.RateLimit, cfg.Relay.RateInterval, ws.Options{
		WriteTimeout: cfg.Signaling.WriteTimeout,
		PingPeriod:   cfg.Signaling.PingPeriod,
		ReadLimit:    cfg.Signaling.ReadLimit,
		SendBuffer:   256,
	})
	addr := fmt.Sprintf(":%d", cfg.Relay.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: relay.NewRouter(ctx, hub, cfg.Mode),
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Teleop relay started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Relay exited gracefully")
}
