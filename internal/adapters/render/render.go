// Package render provides the video sinks the slot relays write into.
package render

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
)

// UDPSink forwards RTP packets to a local player listening on addr.
type UDPSink struct {
	conn *net.UDPConn
	dst  *net.UDPAddr
	tag  string

	mu  sync.Mutex
	buf []byte
}

func NewUDPSink(addr, tag string) (*UDPSink, error) {
	dst, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	return &UDPSink{conn: conn, dst: dst, tag: tag, buf: make([]byte, 1500)}, nil
}

func (s *UDPSink) WriteRTP(pkt *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size := pkt.MarshalSize(); size > len(s.buf) {
		s.buf = make([]byte, size)
	}
	n, err := pkt.MarshalTo(s.buf)
	if err != nil {
		return fmt.Errorf("marshal rtp: %w", err)
	}
	if _, err := s.conn.WriteToUDP(s.buf[:n], s.dst); err != nil {
		return fmt.Errorf("write %s: %w", s.tag, err)
	}
	return nil
}

func (s *UDPSink) Close() error { return s.conn.Close() }

// CountingSink discards packets and keeps totals.
type CountingSink struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
}

func (s *CountingSink) WriteRTP(pkt *rtp.Packet) error {
	s.packets.Add(1)
	s.bytes.Add(uint64(len(pkt.Payload)))
	return nil
}

func (s *CountingSink) Packets() uint64 { return s.packets.Load() }
func (s *CountingSink) Bytes() uint64   { return s.bytes.Load() }

// Slots holds one sink per video slot.
type Slots struct {
	a, b core.VideoSink
}

var _ core.Renderer = (*Slots)(nil)

func NewSlots(a, b core.VideoSink) *Slots { return &Slots{a: a, b: b} }

func (s *Slots) Sink(slot domain.Slot) core.VideoSink {
	if slot == domain.SlotA {
		return s.a
	}
	return s.b
}

// NewUDPSlots opens one UDP sink per slot.
func NewUDPSlots(aAddr, bAddr string) (*Slots, func(), error) {
	a, err := NewUDPSink(aAddr, "slot-a")
	if err != nil {
		return nil, nil, err
	}
	b, err := NewUDPSink(bAddr, "slot-b")
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	log.Info().Str("module", "render").Str("slot_a", aAddr).Str("slot_b", bAddr).Msg("udp sinks ready")
	closeAll := func() {
		_ = a.Close()
		_ = b.Close()
	}
	return NewSlots(a, b), closeAll, nil
}
