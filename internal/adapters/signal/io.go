package signal

import (
	"encoding/json"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
)

func (c *Client) handleMessage(data []byte, h core.SignalHandler) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn().Err(err).Int("len", len(data)).Msg("bad envelope")
		return
	}
	c.logger.Debug().Str("kind", env.Kind.String()).Msg("envelope received")
	if h.OnEnvelope != nil {
		h.OnEnvelope(env)
	}
}
