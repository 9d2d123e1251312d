package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Teleop/internal/adapters/ws"
	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = core.ErrNotConnected
	ErrBackpressure = ws.ErrBackpressure
	errSuperseded   = errors.New("signaling connection superseded")
)

// Client is the operator side of the signaling channel. Each Connect call
// produces at most one open and exactly one disconnected event.
type Client struct {
	opts   ws.Options
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu    sync.Mutex
	state core.SignalState
	conn  *ws.Conn
	epoch uint64
}

var _ core.SignalTransport = (*Client)(nil)

func NewClient(opts ws.Options) *Client {
	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: log.With().Str("module", "signal").Logger(),
	}
}

func (c *Client) State() core.SignalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connect(ctx context.Context, url string, h core.SignalHandler) {
	c.mu.Lock()
	if c.state != core.SignalDisconnected {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn().Str("state", state.String()).Msg("connect ignored, already active")
		return
	}
	c.state = core.SignalConnecting
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.logger.Info().Str("url", url).Uint64("epoch", epoch).Msg("connecting")
	go c.run(ctx, epoch, url, h)
}

func (c *Client) run(ctx context.Context, epoch uint64, url string, h core.SignalHandler) {
	wsc, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("dial failed")
		c.finish(epoch)
		notifyDisconnected(h, fmt.Errorf("dial signaling: %w", err))
		return
	}

	conn := ws.New(wsc, c.opts, c.logger)
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		conn.Close()
		notifyDisconnected(h, errSuperseded)
		return
	}
	c.conn = conn
	c.state = core.SignalOpen
	c.mu.Unlock()

	c.logger.Info().Str("url", url).Msg("open")
	if err := c.Send(domain.Hello()); err != nil {
		c.logger.Error().Err(err).Msg("send hello")
	}
	if h.OnOpen != nil {
		h.OnOpen()
	}

	err = conn.Run(ctx, func(data []byte) { c.handleMessage(data, h) })
	c.finish(epoch)
	c.logger.Info().Err(err).Msg("disconnected")
	notifyDisconnected(h, err)
}

func notifyDisconnected(h core.SignalHandler, err error) {
	if h.OnDisconnected != nil {
		h.OnDisconnected(err)
	}
}

func (c *Client) finish(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.state = core.SignalDisconnected
	c.conn = nil
}

// Send queues env for delivery. It fails with ErrNotConnected unless the
// socket is open.
func (c *Client) Send(env domain.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Kind, err)
	}

	c.mu.Lock()
	conn := c.conn
	open := c.state == core.SignalOpen
	c.mu.Unlock()
	if !open || conn == nil {
		return ErrNotConnected
	}
	if err := conn.TrySend(b); err != nil {
		if errors.Is(err, ws.ErrClosed) {
			return ErrNotConnected
		}
		return err
	}
	return nil
}

// Close drops the current connection. The pending Connect still reports its
// disconnected event.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.epoch++
	c.conn = nil
	c.state = core.SignalDisconnected
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	return nil
}
