package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Teleop/internal/adapters/rtc"
	"github.com/dkeye/Teleop/internal/config"
	"github.com/dkeye/Teleop/internal/robot"
)

const statsPeriod = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config.InitLogging()
	cfg, err := config.Load("robotsim", os.Args[1:])
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

	bot := robot.New(robot.Options{
		SignalURL:    cfg.Robot.SignalingURL,
		TelemetryURL: cfg.Robot.TelemetryURL,
		RobotID:      cfg.Telemetry.RobotID,
		FPS:          cfg.Robot.FPS,
		MaxRetries:   cfg.Robot.MaxRetries,
		API:          api,
		RTCConfig:    rtc.ResolveConfig(ctx, cfg.WebRTC.RTCConfigURL, cfg.WebRTC.ICEServers),
	})

	go func() {
		t := time.NewTicker(statsPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := bot.Stats()
				log.Info().
					Uint64("offers", st.Offers).
					Uint64("answers", st.Answers).
					Uint64("telemetry_frames", st.TelemetryFrames).
					Str("peer", st.PeerState).
					Msg("robot stats")
			}
		}
	}()

	log.Info().Str("robot_id", cfg.Telemetry.RobotID).Msg("Teleop robot simulator started")
	if err := bot.Run(ctx); err != nil {
		log.Error().Err(err).Msg("robot simulator stopped")
		os.Exit(1)
	}
	log.Info().Msg("Robot simulator exited")
}
