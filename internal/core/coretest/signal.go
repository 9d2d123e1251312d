package coretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
)

// Outbox is a Sender that records envelopes and can be switched offline.
type Outbox struct {
	mu      sync.Mutex
	sent    []domain.Envelope
	offline bool
}

func (o *Outbox) Send(env domain.Envelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.offline {
		return fmt.Errorf("outbox: %w", core.ErrNotConnected)
	}
	o.sent = append(o.sent, env)
	return nil
}

func (o *Outbox) SetOffline(offline bool) {
	o.mu.Lock()
	o.offline = offline
	o.mu.Unlock()
}

func (o *Outbox) Sent() []domain.Envelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.Envelope(nil), o.sent...)
}

// Count returns how many envelopes of kind were sent.
func (o *Outbox) Count(kind domain.EnvelopeKind) int {
	n := 0
	for _, e := range o.Sent() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Signal is a SignalTransport whose connection outcome is driven by the test.
type Signal struct {
	Outbox

	mu       sync.Mutex
	state    core.SignalState
	handler  core.SignalHandler
	Connects int
	Closes   int
}

var _ core.SignalTransport = (*Signal)(nil)

func (s *Signal) Connect(_ context.Context, _ string, h core.SignalHandler) {
	s.mu.Lock()
	s.Connects++
	s.state = core.SignalConnecting
	s.handler = h
	s.mu.Unlock()
}

func (s *Signal) Send(env domain.Envelope) error {
	if s.State() != core.SignalOpen {
		return fmt.Errorf("signal: %w", core.ErrNotConnected)
	}
	return s.Outbox.Send(env)
}

func (s *Signal) State() core.SignalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Signal) Close() error {
	s.mu.Lock()
	s.Closes++
	s.state = core.SignalDisconnected
	s.mu.Unlock()
	return nil
}

// Handler returns the handler of the latest Connect.
func (s *Signal) Handler() core.SignalHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// Open completes the pending Connect: hello is recorded, then OnOpen fires.
func (s *Signal) Open() {
	s.mu.Lock()
	s.state = core.SignalOpen
	h := s.handler
	s.mu.Unlock()
	_ = s.Outbox.Send(domain.Hello())
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

// Drop ends the connection and reports it.
func (s *Signal) Drop(err error) {
	s.mu.Lock()
	s.state = core.SignalDisconnected
	h := s.handler
	s.mu.Unlock()
	if h.OnDisconnected != nil {
		h.OnDisconnected(err)
	}
}

// Deliver hands env to the current handler as if it came off the wire.
func (s *Signal) Deliver(env domain.Envelope) {
	h := s.Handler()
	if h.OnEnvelope != nil {
		h.OnEnvelope(env)
	}
}
