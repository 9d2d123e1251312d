// Package coretest provides in-memory implementations of the core interfaces
// for tests.
package coretest

import (
	"io"
	"sync"

	"github.com/dkeye/Teleop/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

// Track is a RemoteTrack fed by Push.
type Track struct {
	id, stream string
	kind       domain.TrackKind

	pkts   chan *rtp.Packet
	once   sync.Once
	closed chan struct{}
}

func NewTrack(id string, kind domain.TrackKind) *Track {
	return &Track{
		id:     id,
		stream: "stereo",
		kind:   kind,
		pkts:   make(chan *rtp.Packet, 64),
		closed: make(chan struct{}),
	}
}

func (t *Track) ID() string             { return t.id }
func (t *Track) StreamID() string       { return t.stream }
func (t *Track) Kind() domain.TrackKind { return t.kind }

func (t *Track) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	select {
	case p := <-t.pkts:
		return p, nil, nil
	case <-t.closed:
		return nil, nil, io.EOF
	}
}

func (t *Track) Push(p *rtp.Packet) { t.pkts <- p }

// End makes pending and future reads return io.EOF.
func (t *Track) End() { t.once.Do(func() { close(t.closed) }) }

// Sink records packets written to it.
type Sink struct {
	mu   sync.Mutex
	pkts []*rtp.Packet
	got  chan struct{}
}

func NewSink() *Sink { return &Sink{got: make(chan struct{}, 256)} }

func (s *Sink) WriteRTP(p *rtp.Packet) error {
	s.mu.Lock()
	s.pkts = append(s.pkts, p)
	s.mu.Unlock()
	select {
	case s.got <- struct{}{}:
	default:
	}
	return nil
}

func (s *Sink) Packets() []*rtp.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*rtp.Packet(nil), s.pkts...)
}

// Written signals once per written packet.
func (s *Sink) Written() <-chan struct{} { return s.got }
