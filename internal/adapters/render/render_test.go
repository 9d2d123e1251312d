package render

import (
	"net"
	"testing"
	"time"

	"github.com/dkeye/Teleop/internal/domain"
	"github.com/pion/rtp"
)

func TestUDPSinkDeliversPacket(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	sink, err := NewUDPSink(ln.LocalAddr().String(), "test")
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	pkt := &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 96, SequenceNumber: 7, SSRC: 42},
		Payload: []byte{1, 2, 3},
	}
	if err := sink.WriteRTP(pkt); err != nil {
		t.Fatalf("WriteRTP: %v", err)
	}

	buf := make([]byte, 1500)
	_ = ln.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := ln.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got rtp.Packet
	if err := got.Unmarshal(buf[:n]); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.SequenceNumber != 7 || got.SSRC != 42 || len(got.Payload) != 3 {
		t.Errorf("got %+v", got.Header)
	}
}

func TestSlotsRouting(t *testing.T) {
	a, b := &CountingSink{}, &CountingSink{}
	s := NewSlots(a, b)
	_ = s.Sink(domain.SlotB).WriteRTP(&rtp.Packet{Payload: []byte{1, 2}})
	if a.Packets() != 0 || b.Packets() != 1 || b.Bytes() != 2 {
		t.Errorf("a=%d b=%d bytes=%d", a.Packets(), b.Packets(), b.Bytes())
	}
}
