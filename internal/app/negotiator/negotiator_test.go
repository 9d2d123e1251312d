package negotiator

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/core/coretest"
	"github.com/dkeye/Teleop/internal/core/mocks"
	"github.com/dkeye/Teleop/internal/domain"
	"go.uber.org/mock/gomock"
)

func cand(s string, idx uint16) domain.ICECandidate {
	return domain.ICECandidate{Candidate: s, SDPMLineIndex: idx}
}

func newTestNegotiator(t *testing.T, opts Options) (*Negotiator, *coretest.Session, *coretest.Outbox) {
	t.Helper()
	sess := coretest.NewSession()
	out := &coretest.Outbox{}
	return New(sess, out, opts), sess, out
}

func TestOfferProducesExactlyOneAnswer(t *testing.T) {
	n, sess, out := newTestNegotiator(t, Options{})

	n.HandleEnvelope(domain.Offer("v=0 offer"))

	if n.State() != domain.StateAnswered {
		t.Fatalf("state = %s, want answered", n.State())
	}
	remote, local, _, _ := sess.Snapshot()
	if len(remote) != 1 || remote[0].Type != domain.SDPTypeOffer {
		t.Errorf("remote descriptions = %+v", remote)
	}
	if len(local) != 1 || local[0].Type != domain.SDPTypeAnswer {
		t.Errorf("local descriptions = %+v", local)
	}
	if got := out.Count(domain.KindAnswer); got != 1 {
		t.Errorf("answers sent = %d, want 1", got)
	}
	if got := out.Count(domain.KindOffer); got != 0 {
		t.Errorf("offers sent = %d, want 0", got)
	}
}

func TestSecondOfferIsAnsweredAgain(t *testing.T) {
	n, _, out := newTestNegotiator(t, Options{})
	n.HandleEnvelope(domain.Offer("v=0 a"))
	n.HandleEnvelope(domain.Offer("v=0 b"))
	if got := out.Count(domain.KindAnswer); got != 2 {
		t.Fatalf("answers = %d, want one per offer", got)
	}
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	n, sess, _ := newTestNegotiator(t, Options{})

	n.HandleEnvelope(domain.Candidate(cand("candidate:1", 0)))
	n.HandleEnvelope(domain.Candidate(cand("candidate:2", 1)))
	if n.PendingRemoteCandidates() != 2 {
		t.Fatalf("pending = %d, want 2", n.PendingRemoteCandidates())
	}
	if _, _, applied, _ := sess.Snapshot(); len(applied) != 0 {
		t.Fatalf("candidates applied before remote description: %v", applied)
	}

	n.HandleEnvelope(domain.Offer("v=0"))
	n.HandleEnvelope(domain.Candidate(cand("candidate:3", 0)))

	_, _, applied, _ := sess.Snapshot()
	if len(applied) != 3 {
		t.Fatalf("applied %d candidates, want 3", len(applied))
	}
	for i, want := range []string{"candidate:1", "candidate:2", "candidate:3"} {
		if applied[i].Candidate != want {
			t.Errorf("applied[%d] = %s, want %s", i, applied[i].Candidate, want)
		}
	}
	if n.PendingRemoteCandidates() != 0 {
		t.Errorf("pending not drained")
	}
}

func TestCandidateFailureIsNotFatal(t *testing.T) {
	n, sess, out := newTestNegotiator(t, Options{})
	sess.CandidateErr = errors.New("bad candidate")

	n.HandleEnvelope(domain.Candidate(cand("candidate:x", 0)))
	n.HandleEnvelope(domain.Offer("v=0"))
	n.HandleEnvelope(domain.Candidate(cand("candidate:y", 0)))

	if n.State() != domain.StateAnswered {
		t.Fatalf("state = %s, want answered", n.State())
	}
	if out.Count(domain.KindAnswer) != 1 {
		t.Fatal("answer not sent")
	}
}

func TestMalformedOfferClosesAndReports(t *testing.T) {
	var reported error
	n, sess, out := newTestNegotiator(t, Options{Hooks: Hooks{
		OnFailure: func(err error) { reported = err },
	}})
	sess.RemoteErr = errors.New("sdp parse error")

	n.HandleEnvelope(domain.Offer("garbage"))

	if n.State() != domain.StateClosed {
		t.Fatalf("state = %s, want closed", n.State())
	}
	if reported == nil {
		t.Fatal("failure not reported")
	}
	if _, _, _, closes := sess.Snapshot(); closes != 1 {
		t.Errorf("session closed %d times, want 1", closes)
	}
	if out.Count(domain.KindAnswer) != 0 {
		t.Error("answer sent for failed offer")
	}

	// Closed sessions ignore further traffic.
	n.HandleEnvelope(domain.Offer("v=0"))
	n.HandleEnvelope(domain.Candidate(cand("candidate:1", 0)))
	if len(out.Sent()) != 0 || n.PendingRemoteCandidates() != 0 {
		t.Error("closed negotiator acted on input")
	}
}

func TestStateTransitions(t *testing.T) {
	var seen []domain.SessionState
	n, _, _ := newTestNegotiator(t, Options{Hooks: Hooks{
		OnStateChange: func(_, to domain.SessionState) { seen = append(seen, to) },
	}})
	if n.State() != domain.StateIdle {
		t.Fatalf("initial state = %s", n.State())
	}
	n.HandleEnvelope(domain.Offer("v=0"))
	n.HandlePeerState(domain.PeerConnecting)
	n.HandlePeerState(domain.PeerConnected)
	n.Close()
	n.Close()

	want := []domain.SessionState{domain.StateNegotiating, domain.StateAnswered, domain.StateActive, domain.StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func TestPeerFailureCloses(t *testing.T) {
	failed := false
	n, _, _ := newTestNegotiator(t, Options{Hooks: Hooks{OnFailure: func(error) { failed = true }}})
	n.HandleEnvelope(domain.Offer("v=0"))
	n.HandlePeerState(domain.PeerDisconnected)
	if n.State() != domain.StateAnswered {
		t.Fatalf("disconnected changed state to %s", n.State())
	}
	n.HandlePeerState(domain.PeerFailed)
	if n.State() != domain.StateClosed || !failed {
		t.Fatalf("state = %s failed = %v", n.State(), failed)
	}
}

func TestSlotAssignment(t *testing.T) {
	type bound struct {
		slot domain.Slot
		id   string
	}
	var got []bound
	n, _, _ := newTestNegotiator(t, Options{Hooks: Hooks{
		OnTrack: func(_ context.Context, slot domain.Slot, tr core.RemoteTrack) {
			got = append(got, bound{slot, tr.ID()})
		},
	}})
	ctx := context.Background()

	n.HandleTrack(ctx, coretest.NewTrack("mic", domain.TrackAudio))
	n.HandleTrack(ctx, coretest.NewTrack("v1", domain.TrackVideo))
	n.HandleTrack(ctx, coretest.NewTrack("v2", domain.TrackVideo))
	n.HandleTrack(ctx, coretest.NewTrack("v3", domain.TrackVideo))

	want := []bound{{domain.SlotA, "v1"}, {domain.SlotB, "v2"}, {domain.SlotB, "v3"}}
	if len(got) != len(want) {
		t.Fatalf("bound = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bound[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if n.Slot(domain.SlotA).ID() != "v1" || n.Slot(domain.SlotB).ID() != "v3" {
		t.Errorf("slots = %s/%s", n.Slot(domain.SlotA).ID(), n.Slot(domain.SlotB).ID())
	}
}

func TestLocalCandidateDroppedWhenSignalingDown(t *testing.T) {
	n, _, out := newTestNegotiator(t, Options{})
	n.HandleEnvelope(domain.Offer("v=0"))

	n.HandleLocalCandidate(cand("candidate:up", 0))
	out.SetOffline(true)
	n.HandleLocalCandidate(cand("candidate:down", 0))
	out.SetOffline(false)
	n.FlushLocalCandidates()

	if got := out.Count(domain.KindCandidate); got != 1 {
		t.Fatalf("candidates sent = %d, want 1", got)
	}
	sent := out.Sent()
	last := sent[len(sent)-1]
	if last.ICE.Candidate != "candidate:up" {
		t.Errorf("sent %s", last.ICE.Candidate)
	}
}

func TestLocalCandidateQueuedWithQueuePolicy(t *testing.T) {
	n, _, out := newTestNegotiator(t, Options{Policy: QueuePolicy{Limit: 1}})
	out.SetOffline(true)
	n.HandleLocalCandidate(cand("candidate:1", 0))
	n.HandleLocalCandidate(cand("candidate:2", 0))
	if n.QueuedLocalCandidates() != 1 {
		t.Fatalf("queued = %d, want 1 (limit)", n.QueuedLocalCandidates())
	}
	out.SetOffline(false)
	n.FlushLocalCandidates()
	sent := out.Sent()
	if len(sent) != 1 || sent[0].ICE.Candidate != "candidate:1" {
		t.Fatalf("sent = %+v", sent)
	}
	if sent[0].ICE.SDPMLineIndex != 0 {
		t.Errorf("sdpMLineIndex = %d", sent[0].ICE.SDPMLineIndex)
	}
}

func TestDataChannelAcceptedPassively(t *testing.T) {
	n, _, out := newTestNegotiator(t, Options{})
	dc := &coretest.DataChannel{Name: "control"}
	n.HandleDataChannel(dc)
	if dc.OpenFn == nil || dc.CloseFn == nil || dc.MessageFn == nil {
		t.Fatal("handlers not installed")
	}
	dc.OpenFn()
	dc.MessageFn([]byte("hi"))
	dc.CloseFn()
	if len(out.Sent()) != 0 {
		t.Error("data channel traffic produced signaling")
	}
}

func TestOfferCallOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := mocks.NewMockMediaSession(ctrl)
	out := &coretest.Outbox{}
	n := New(sess, out, Options{})

	early := cand("candidate:early", 0)
	answer := domain.SessionDescription{Type: domain.SDPTypeAnswer, SDP: "v=0 a"}
	gomock.InOrder(
		sess.EXPECT().SetRemoteDescription(domain.SessionDescription{Type: domain.SDPTypeOffer, SDP: "v=0 o"}).Return(nil),
		sess.EXPECT().AddICECandidate(early).Return(errors.New("stale")),
		sess.EXPECT().CreateAnswer().Return(answer, nil),
		sess.EXPECT().SetLocalDescription(answer).Return(nil),
	)
	sess.EXPECT().Close().Return(nil).Times(1)

	n.HandleEnvelope(domain.Candidate(early))
	n.HandleEnvelope(domain.Offer("v=0 o"))
	n.Close()
	n.Close()

	if out.Count(domain.KindAnswer) != 1 {
		t.Fatal("answer not sent")
	}
}
