package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Teleop/internal/adapters/ws"
	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotOpen matches core.ErrNotConnected under errors.Is.
var ErrNotOpen = fmt.Errorf("telemetry: %w", core.ErrNotConnected)

type Options struct {
	Role    string
	RobotID string
	Codec   Codec
	WS      ws.Options
}

// Transport pushes pose frames to the robot over its own WebSocket.
type Transport struct {
	opts   Options
	dialer *websocket.Dialer
	logger zerolog.Logger
	// dropLog is sampled so a sustained outage logs a few lines per second.
	dropLog zerolog.Logger

	mu     sync.Mutex
	conn   *ws.Conn
	open   bool
	closed bool
	cancel context.CancelFunc

	sent    atomic.Uint64
	dropped atomic.Uint64
}

var _ core.TelemetryTransport = (*Transport)(nil)

func New(opts Options) *Transport {
	if opts.Codec == nil {
		opts.Codec = jsonCodec{}
	}
	if opts.Role == "" {
		opts.Role = domain.RoleTeleop
	}
	opts.WS.Binary = opts.Codec.Binary()
	logger := log.With().Str("module", "telemetry").Str("robot_id", opts.RobotID).Logger()
	return &Transport{
		opts:    opts,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  logger,
		dropLog: logger.Sample(&zerolog.BurstSampler{Burst: 3, Period: time.Second}),
	}
}

// Connect dials in the background. The role announcement is queued ahead of
// any frame.
func (t *Transport) Connect(ctx context.Context, url string) {
	t.mu.Lock()
	if t.closed || t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(ctx, url)
}

func (t *Transport) run(ctx context.Context, url string) {
	wsc, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		t.logger.Warn().Err(err).Str("url", url).Msg("dial failed")
		return
	}
	conn := ws.New(wsc, t.opts.WS, t.logger)

	hello, err := t.opts.Codec.Marshal(domain.RoleAnnouncement{Role: t.opts.Role, RobotID: t.opts.RobotID})
	if err != nil {
		t.logger.Error().Err(err).Msg("encode role announcement")
		conn.Close()
		return
	}
	if err := conn.TrySend(hello); err != nil {
		t.logger.Error().Err(err).Msg("queue role announcement")
		conn.Close()
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.open = true
	t.mu.Unlock()
	t.logger.Info().Str("url", url).Str("encoding", t.opts.Codec.Name()).Msg("open")

	err = conn.Run(ctx, func(data []byte) {
		t.logger.Debug().Int("len", len(data)).Msg("ignoring inbound telemetry message")
	})

	t.mu.Lock()
	t.open = false
	t.conn = nil
	t.mu.Unlock()
	t.logger.Info().Err(err).Msg("closed")
}

func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Send encodes and queues msg. It never blocks; when the socket is not open
// the frame is dropped.
func (t *Transport) Send(msg domain.TelemetryMessage) error {
	t.mu.Lock()
	conn, open := t.conn, t.open
	t.mu.Unlock()
	if !open || conn == nil {
		t.dropped.Add(1)
		t.dropLog.Warn().Uint64("dropped", t.dropped.Load()).Msg("telemetry not open, frame dropped")
		return ErrNotOpen
	}

	b, err := t.opts.Codec.Marshal(msg)
	if err != nil {
		t.dropped.Add(1)
		return fmt.Errorf("encode telemetry: %w", err)
	}
	if err := conn.TrySend(b); err != nil {
		t.dropped.Add(1)
		t.dropLog.Warn().Err(err).Msg("telemetry frame dropped")
		return err
	}
	t.sent.Add(1)
	return nil
}

// Close is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn, cancel := t.conn, t.cancel
	t.conn = nil
	t.open = false
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	return nil
}

type Stats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

func (t *Transport) Stats() Stats {
	return Stats{Sent: t.sent.Load(), Dropped: t.dropped.Load()}
}
