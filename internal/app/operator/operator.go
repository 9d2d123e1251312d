// Package operator assembles the operator endpoint from configuration.
package operator

import (
	"context"
	"fmt"

	"github.com/dkeye/Teleop/internal/adapters/handsource"
	"github.com/dkeye/Teleop/internal/adapters/rtc"
	"github.com/dkeye/Teleop/internal/adapters/signal"
	"github.com/dkeye/Teleop/internal/adapters/telemetry"
	"github.com/dkeye/Teleop/internal/adapters/ws"
	"github.com/dkeye/Teleop/internal/app/lifecycle"
	"github.com/dkeye/Teleop/internal/app/negotiator"
	"github.com/dkeye/Teleop/internal/app/sampler"
	"github.com/dkeye/Teleop/internal/app/sfu"
	"github.com/dkeye/Teleop/internal/config"
	"github.com/dkeye/Teleop/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const queuedCandidateLimit = 64

type Operator struct {
	Controller *lifecycle.Controller
	Sampler    *sampler.Sampler
	Hands      *handsource.Store
	Relays     *sfu.RelayManager

	cfg *config.Config
}

// New wires the controller, transports and sampler. Video for each slot goes
// to renderer.
func New(cfg *config.Config, api *webrtc.API, rtcCfg webrtc.Configuration, renderer core.Renderer) (*Operator, error) {
	codec, err := telemetry.NewCodec(cfg.Telemetry.Encoding)
	if err != nil {
		return nil, err
	}
	wsOpts := ws.Options{
		WriteTimeout: cfg.Signaling.WriteTimeout,
		PingPeriod:   cfg.Signaling.PingPeriod,
		ReadLimit:    cfg.Signaling.ReadLimit,
	}

	var policy negotiator.CandidatePolicy = negotiator.DropPolicy{}
	if cfg.Signaling.QueueLocalCandidates {
		policy = negotiator.QueuePolicy{Limit: queuedCandidateLimit}
	}

	relays := sfu.NewRelayManager()
	ctrl := lifecycle.New(lifecycle.Options{
		SignalURL:    cfg.Signaling.URL,
		TelemetryURL: cfg.Telemetry.URL,
		Signal:       signal.NewClient(wsOpts),
		NewSession:   rtc.NewSessionFactory(api, rtcCfg),
		NewTelemetry: func() core.TelemetryTransport {
			return telemetry.New(telemetry.Options{
				Role:    cfg.Telemetry.Role,
				RobotID: cfg.Telemetry.RobotID,
				Codec:   codec,
				WS:      wsOpts,
			})
		},
		Renderer: renderer,
		Relays:   relays,
		Policy:   policy,
	})

	hands := handsource.NewStore(cfg.Hands.StaleAfter)
	smp := sampler.New(ctrl, cfg.TelemetryInterval())
	smp.SetSource(hands)

	return &Operator{
		Controller: ctrl,
		Sampler:    smp,
		Hands:      hands,
		Relays:     relays,
		cfg:        cfg,
	}, nil
}

// Run drives the controller and the sampling clock until ctx ends.
func (o *Operator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := o.Controller.Run(gctx); err != nil {
			return fmt.Errorf("controller: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return o.Sampler.Run(gctx, o.cfg.TickInterval())
	})
	log.Info().
		Str("module", "operator").
		Dur("tick", o.cfg.TickInterval()).
		Dur("telemetry_interval", o.cfg.TelemetryInterval()).
		Msg("operator running")
	return g.Wait()
}
