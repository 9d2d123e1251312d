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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Teleop/internal/adapters/http"
	"github.com/dkeye/Teleop/internal/adapters/render"
	"github.com/dkeye/Teleop/internal/adapters/rtc"
	"github.com/dkeye/Teleop/internal/app/operator"
	"github.com/dkeye/Teleop/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config.InitLogging()
	cfg, err := config.Load("operator", os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.ApplyLogLevel()

	api, err := rtc.NewAPI(rtc.APIOptions{
		IncludeLoopback: cfg.WebRTC.IncludeLoopback,
		LoggerFactory:   rtc.NewLoggerFactory(log.Logger, zerolog.WarnLevel),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("webrtc setup failed")
	}
	rtcCfg := rtc.ResolveConfig(ctx, cfg.WebRTC.RTCConfigURL, cfg.WebRTC.ICEServers)

	slots, closeSinks, err := render.NewUDPSlots(cfg.Render.SlotAAddr, cfg.Render.SlotBAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("render sinks failed")
	}
	defer closeSinks()

	op, err := operator.New(cfg, api, rtcCfg, slots)
	if err != nil {
		log.Fatal().Err(err).Msg("operator setup failed")
	}

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Call:    op.Controller,
		Hands:   op.Hands,
		Sampler: op.Sampler,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return op.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Teleop operator started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("operator stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Operator exited gracefully")
}
