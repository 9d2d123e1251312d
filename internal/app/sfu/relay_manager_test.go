package sfu

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Teleop/internal/core/coretest"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/pion/rtp"
)

func waitWritten(t *testing.T, s *coretest.Sink) {
	t.Helper()
	select {
	case <-s.Written():
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received a packet")
	}
}

func waitDone(t *testing.T, r *Relay) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("relay loop did not exit")
	}
}

func TestRelayForwardsToSlotSink(t *testing.T) {
	m := NewRelayManager()
	track := coretest.NewTrack("cam-left", domain.TrackVideo)
	sink := coretest.NewSink()

	relay := m.StartRelay(context.Background(), domain.SlotA, track, sink)
	track.Push(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1}})
	waitWritten(t, sink)

	if got := sink.Packets(); len(got) != 1 || got[0].SequenceNumber != 1 {
		t.Fatalf("sink packets = %v", got)
	}
	if !m.HasRelay(domain.SlotA) || m.HasRelay(domain.SlotB) {
		t.Fatal("unexpected relay set")
	}
	if src, ok := m.SrcTrack(domain.SlotA); !ok || src.ID() != "cam-left" {
		t.Fatalf("SrcTrack = %v, %v", src, ok)
	}

	track.End()
	waitDone(t, relay)
}

func TestRelayReplacementStopsOldLoop(t *testing.T) {
	m := NewRelayManager()
	first := coretest.NewTrack("b1", domain.TrackVideo)
	second := coretest.NewTrack("b2", domain.TrackVideo)
	oldSink, newSink := coretest.NewSink(), coretest.NewSink()

	old := m.StartRelay(context.Background(), domain.SlotB, first, oldSink)
	m.StartRelay(context.Background(), domain.SlotB, second, newSink)

	first.Push(&rtp.Packet{})
	waitDone(t, old)
	if n := len(oldSink.Packets()); n != 0 {
		t.Errorf("replaced relay forwarded %d packets", n)
	}

	second.Push(&rtp.Packet{})
	waitWritten(t, newSink)
	if src, _ := m.SrcTrack(domain.SlotB); src.ID() != "b2" {
		t.Errorf("slot B source = %s, want b2", src.ID())
	}
}

func TestRelayMuteAndStopAll(t *testing.T) {
	m := NewRelayManager()
	track := coretest.NewTrack("a", domain.TrackVideo)
	sink := coretest.NewSink()
	relay := m.StartRelay(context.Background(), domain.SlotA, track, sink)

	if !m.SetMuted(domain.SlotA, true) {
		t.Fatal("SetMuted on live slot failed")
	}
	track.Push(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1}})
	m.SetMuted(domain.SlotA, false)
	track.Push(&rtp.Packet{Header: rtp.Header{SequenceNumber: 2}})
	waitWritten(t, sink)

	if st := m.Stats()[domain.SlotA]; st.TrackID != "a" {
		t.Errorf("stats = %+v", st)
	}

	m.StopAll()
	track.Push(&rtp.Packet{})
	waitDone(t, relay)
	if m.HasRelay(domain.SlotA) {
		t.Error("relay survived StopAll")
	}
	if m.SetMuted(domain.SlotB, true) {
		t.Error("SetMuted on empty slot reported success")
	}
}

func TestOutTrackDeleteIsFinal(t *testing.T) {
	ot := NewOutTrack(coretest.NewSink())
	ot.MarkMuted()
	if ot.GetState() != TrackStateMuted {
		t.Fatalf("state = %s", ot.GetState())
	}
	ot.MarkDelete()
	ot.MarkOk()
	if ot.GetState() != TrackStateDelete {
		t.Fatalf("state after MarkOk = %s, want delete", ot.GetState())
	}
}
