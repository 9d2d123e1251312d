package lifecycle

import (
	"context"
	"fmt"

	"github.com/dkeye/Teleop/internal/app/negotiator"
	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
)

// activate replaces the current session with a fresh one and makes sure the
// robot is asked for an offer.
func (c *Controller) activate() {
	c.teardown()

	c.gen++
	gen := c.gen
	sess, err := c.opts.NewSession()
	if err != nil {
		c.lastErr = fmt.Errorf("build media session: %w", err)
		c.logger.Error().Err(err).Uint64("gen", gen).Msg("session setup failed")
		return
	}
	sessCtx, cancel := context.WithCancel(c.ctx)
	if err := sess.Start(sessCtx); err != nil {
		cancel()
		_ = sess.Close()
		c.lastErr = fmt.Errorf("start media session: %w", err)
		c.logger.Error().Err(err).Uint64("gen", gen).Msg("session start failed")
		return
	}
	c.bindMediaHandlers(sess, gen)

	c.neg = negotiator.New(sess, c.opts.Signal, negotiator.Options{
		Policy:     c.opts.Policy,
		Generation: gen,
		Hooks: negotiator.Hooks{
			OnTrack:   c.bindTrack,
			OnFailure: func(err error) { c.onSessionFailure(gen, err) },
		},
	})
	c.sessCancel = cancel
	c.built++
	c.lastErr = nil

	tele := c.opts.NewTelemetry()
	tele.Connect(sessCtx, c.opts.TelemetryURL)
	c.tele = tele
	c.telemetry.Store(&telemetryRef{t: tele})

	c.logger.Info().Uint64("gen", gen).Msg("session built")
	c.requestOffer()
}

// bindMediaHandlers routes media-stack callbacks into the loop, tagged with
// the generation they belong to.
func (c *Controller) bindMediaHandlers(sess core.MediaSession, gen uint64) {
	sess.OnICECandidate(func(cand domain.ICECandidate) {
		_ = c.post(event{kind: evLocalCandidate, gen: gen, cand: cand})
	})
	sess.OnTrack(func(ctx context.Context, track core.RemoteTrack) {
		_ = c.post(event{kind: evTrack, gen: gen, ctx: ctx, track: track})
	})
	sess.OnConnectionStateChange(func(st domain.PeerState) {
		_ = c.post(event{kind: evPeerState, gen: gen, peer: st})
	})
	sess.OnDataChannel(func(dc core.DataChannel) {
		_ = c.post(event{kind: evDataChannel, gen: gen, dc: dc})
	})
}

func (c *Controller) onMediaEvent(ev event) {
	if ev.gen != c.gen || c.neg == nil {
		c.logger.Debug().Str("event", ev.kind.String()).Uint64("gen", ev.gen).Uint64("current", c.gen).Msg("stale media event ignored")
		return
	}
	switch ev.kind {
	case evLocalCandidate:
		c.neg.HandleLocalCandidate(ev.cand)
	case evTrack:
		c.neg.HandleTrack(ev.ctx, ev.track)
	case evPeerState:
		c.neg.HandlePeerState(ev.peer)
	case evDataChannel:
		c.neg.HandleDataChannel(ev.dc)
	}
}

func (c *Controller) bindTrack(ctx context.Context, slot domain.Slot, track core.RemoteTrack) {
	if c.opts.Renderer == nil {
		return
	}
	c.opts.Relays.StartRelay(ctx, slot, track, c.opts.Renderer.Sink(slot))
}

func (c *Controller) onSessionFailure(gen uint64, err error) {
	c.lastErr = err
	c.logger.Error().Err(err).Uint64("gen", gen).Msg("session closed on failure, waiting for a new directive")
	c.teardown()
}

// teardown releases the current session and its telemetry. It is safe to
// call at any time, repeatedly.
func (c *Controller) teardown() {
	if c.neg == nil && c.tele == nil && c.sessCancel == nil {
		return
	}
	gen := c.gen
	c.opts.Relays.StopAll()
	if c.neg != nil {
		c.neg.Close()
		c.neg = nil
	}
	c.telemetry.Store(nil)
	if c.tele != nil {
		if err := c.tele.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("close telemetry")
		}
		c.tele = nil
	}
	if c.sessCancel != nil {
		c.sessCancel()
		c.sessCancel = nil
	}
	c.logger.Info().Uint64("gen", gen).Msg("session torn down")
}
