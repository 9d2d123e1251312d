package lifecycle

import (
	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
)

// requestOffer gets a hello to the robot through whichever path the
// signaling state allows.
func (c *Controller) requestOffer() {
	switch st := c.opts.Signal.State(); st {
	case core.SignalDisconnected:
		c.connectSignal()
	case core.SignalOpen:
		if err := c.opts.Signal.Send(domain.Hello()); err != nil {
			c.logger.Warn().Err(err).Msg("send hello")
			return
		}
		c.hellos++
		c.logger.Info().Int("hellos", c.hellos).Msg("hello sent on open signaling")
	case core.SignalConnecting:
		c.logger.Info().Msg("signaling connecting, hello deferred until open")
	}
}

func (c *Controller) connectSignal() {
	c.sigEpoch++
	epoch := c.sigEpoch
	c.opts.Signal.Connect(c.ctx, c.opts.SignalURL, core.SignalHandler{
		OnOpen: func() {
			_ = c.post(event{kind: evSignalOpen, gen: epoch})
		},
		OnEnvelope: func(env domain.Envelope) {
			_ = c.post(event{kind: evSignalEnvelope, gen: epoch, env: env})
		},
		OnDisconnected: func(err error) {
			_ = c.post(event{kind: evSignalDisconnected, gen: epoch, err: err})
		},
	})
}

func (c *Controller) onSignalOpen(epoch uint64) {
	if epoch != c.sigEpoch {
		return
	}
	// The transport sent hello on open.
	c.hellos++
	c.logger.Info().Int("hellos", c.hellos).Msg("signaling open")
	if c.neg != nil {
		c.neg.FlushLocalCandidates()
	}
}

func (c *Controller) onSignalEnvelope(epoch uint64, env domain.Envelope) {
	if epoch != c.sigEpoch {
		return
	}
	if c.neg == nil {
		c.logger.Debug().Str("kind", env.Kind.String()).Msg("envelope without session ignored")
		return
	}
	c.neg.HandleEnvelope(env)
}

func (c *Controller) onSignalDisconnected(epoch uint64, err error) {
	if epoch != c.sigEpoch {
		return
	}
	c.logger.Warn().Err(err).Msg("signaling disconnected, not reconnecting")
}
