// Package ws wraps a gorilla connection with a single writer goroutine and a
// non-blocking send queue.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	WriteTimeout time.Duration
	// PingPeriod enables keepalive pings when positive. The peer must answer
	// within two periods.
	PingPeriod time.Duration
	ReadLimit  int64
	SendBuffer int
	Binary     bool
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

type frame struct {
	msgType int
	data    []byte
}

type Conn struct {
	conn   *websocket.Conn
	send   chan frame
	opts   Options
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

func New(c *websocket.Conn, opts Options, logger zerolog.Logger) *Conn {
	opts = opts.withDefaults()
	if opts.ReadLimit > 0 {
		c.SetReadLimit(opts.ReadLimit)
	}
	return &Conn{
		conn:   c,
		send:   make(chan frame, opts.SendBuffer),
		opts:   opts,
		logger: logger,
	}
}

// TrySend queues b for writing with the connection's default message type.
// It never blocks.
func (c *Conn) TrySend(b []byte) error {
	msgType := websocket.TextMessage
	if c.opts.Binary {
		msgType = websocket.BinaryMessage
	}
	return c.TrySendMessage(msgType, b)
}

// TrySendMessage queues b with an explicit websocket message type.
func (c *Conn) TrySendMessage(msgType int, b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- frame{msgType: msgType, data: b}:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *Conn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Run pumps the connection until it fails, ctx ends or Close is called.
// Inbound messages are handed to onMessage in arrival order.
func (c *Conn) Run(ctx context.Context, onMessage func([]byte)) error {
	return c.RunMessages(ctx, func(_ int, data []byte) { onMessage(data) })
}

// RunMessages is Run with the websocket message type of each inbound message.
func (c *Conn) RunMessages(ctx context.Context, onMessage func(msgType int, data []byte)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.writePump(ctx)
	return c.readPump(onMessage)
}

func (c *Conn) writePump(ctx context.Context) {
	var tick <-chan time.Time
	if c.opts.PingPeriod > 0 {
		t := time.NewTicker(c.opts.PingPeriod)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-tick:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Warn().Err(err).Msg("writePump ping failed")
				c.Close()
				return
			}
		case f, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.logger.Error().Err(err).Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(f.msgType, f.data); err != nil {
				c.logger.Error().Err(err).Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) readPump(onMessage func(int, []byte)) error {
	defer c.Close()

	if c.opts.PingPeriod > 0 {
		wait := 2 * c.opts.PingPeriod
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsClosed() {
				return ErrClosed
			}
			return err
		}
		onMessage(mt, data)
	}
}
