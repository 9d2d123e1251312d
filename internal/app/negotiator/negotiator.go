// Package negotiator answers remote offers for a single media session.
//
// A Negotiator is not safe for concurrent use. Its owner feeds it envelopes
// and media-stack events from one goroutine.
package negotiator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrSessionClosed = errors.New("media session closed")

// Sender delivers outbound envelopes. It returns an error wrapping
// core.ErrNotConnected when signaling is down.
type Sender interface {
	Send(domain.Envelope) error
}

type Hooks struct {
	// OnTrack fires for every video track with the slot it was assigned to.
	OnTrack func(ctx context.Context, slot domain.Slot, track core.RemoteTrack)
	// OnFailure fires once when the session moves to closed on an error.
	OnFailure     func(err error)
	OnStateChange func(from, to domain.SessionState)
}

type Options struct {
	Policy CandidatePolicy
	Hooks  Hooks
	// Generation tags log lines.
	Generation uint64
}

type Negotiator struct {
	session core.MediaSession
	out     Sender
	policy  CandidatePolicy
	hooks   Hooks
	logger  zerolog.Logger

	state         domain.SessionState
	remoteSet     bool
	pendingRemote []domain.ICECandidate
	queuedLocal   []domain.ICECandidate

	slots       [2]core.RemoteTrack
	videoTracks int
	answers     int
}

func New(session core.MediaSession, out Sender, opts Options) *Negotiator {
	if opts.Policy == nil {
		opts.Policy = DropPolicy{}
	}
	return &Negotiator{
		session: session,
		out:     out,
		policy:  opts.Policy,
		hooks:   opts.Hooks,
		logger:  log.With().Str("module", "negotiator").Uint64("gen", opts.Generation).Logger(),
	}
}

func (n *Negotiator) State() domain.SessionState { return n.state }

func (n *Negotiator) Session() core.MediaSession { return n.session }

// Slot returns the track bound to slot, or nil.
func (n *Negotiator) Slot(slot domain.Slot) core.RemoteTrack { return n.slots[slot] }

func (n *Negotiator) PendingRemoteCandidates() int { return len(n.pendingRemote) }

func (n *Negotiator) QueuedLocalCandidates() int { return len(n.queuedLocal) }

func (n *Negotiator) setState(to domain.SessionState) {
	from := n.state
	if from == to {
		return
	}
	n.state = to
	n.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("session state")
	if n.hooks.OnStateChange != nil {
		n.hooks.OnStateChange(from, to)
	}
}

// HandleEnvelope applies one inbound signaling message.
func (n *Negotiator) HandleEnvelope(env domain.Envelope) {
	switch env.Kind {
	case domain.KindOffer:
		if env.SDP == nil {
			n.logger.Warn().Msg("offer without sdp")
			return
		}
		n.handleOffer(*env.SDP)
	case domain.KindCandidate:
		if env.ICE == nil {
			n.logger.Warn().Msg("candidate without ice")
			return
		}
		n.handleRemoteCandidate(*env.ICE)
	case domain.KindAnswer:
		n.logger.Warn().Msg("unexpected answer, this endpoint never offers")
	case domain.KindHello:
		n.logger.Debug().Msg("ignoring hello")
	default:
		n.logger.Warn().Str("kind", env.Kind.String()).Msg("unknown envelope")
	}
}

func (n *Negotiator) handleOffer(offer domain.SessionDescription) {
	if n.state == domain.StateClosed {
		n.logger.Warn().Msg("offer for closed session ignored")
		return
	}
	n.setState(domain.StateNegotiating)

	if err := n.session.SetRemoteDescription(offer); err != nil {
		n.fail(fmt.Errorf("set remote description: %w", err))
		return
	}
	n.remoteSet = true
	n.flushRemoteCandidates()

	answer, err := n.session.CreateAnswer()
	if err != nil {
		n.fail(fmt.Errorf("create answer: %w", err))
		return
	}
	if err := n.session.SetLocalDescription(answer); err != nil {
		n.fail(fmt.Errorf("set local description: %w", err))
		return
	}
	n.setState(domain.StateAnswered)
	n.answers++

	if err := n.out.Send(domain.Answer(answer.SDP)); err != nil {
		n.logger.Error().Err(err).Msg("send answer")
		return
	}
	n.logger.Info().Int("answers", n.answers).Msg("answer sent")
}

func (n *Negotiator) handleRemoteCandidate(c domain.ICECandidate) {
	if n.state == domain.StateClosed {
		return
	}
	if !n.remoteSet {
		n.pendingRemote = append(n.pendingRemote, c)
		n.logger.Debug().Int("pending", len(n.pendingRemote)).Msg("remote candidate buffered")
		return
	}
	n.addRemoteCandidate(c)
}

func (n *Negotiator) addRemoteCandidate(c domain.ICECandidate) {
	if err := n.session.AddICECandidate(c); err != nil {
		n.logger.Warn().Err(err).Str("candidate", c.Candidate).Msg("add ICE candidate failed")
	}
}

func (n *Negotiator) flushRemoteCandidates() {
	pending := n.pendingRemote
	n.pendingRemote = nil
	if len(pending) > 0 {
		n.logger.Info().Int("count", len(pending)).Msg("applying buffered remote candidates")
	}
	for _, c := range pending {
		n.addRemoteCandidate(c)
	}
}

// HandleLocalCandidate forwards a gathered candidate to the robot.
func (n *Negotiator) HandleLocalCandidate(c domain.ICECandidate) {
	if n.state == domain.StateClosed {
		return
	}
	err := n.out.Send(domain.Candidate(c))
	if err == nil {
		return
	}
	if !errors.Is(err, core.ErrNotConnected) {
		n.logger.Error().Err(err).Msg("send local candidate")
		return
	}
	switch n.policy.OnSignalingDown(c, len(n.queuedLocal)) {
	case QueueCandidate:
		n.queuedLocal = append(n.queuedLocal, c)
		n.logger.Debug().Int("queued", len(n.queuedLocal)).Msg("local candidate queued")
	case DropCandidate:
		n.logger.Warn().Str("candidate", c.Candidate).Msg("signaling not connected, local candidate dropped")
	}
}

// FlushLocalCandidates resends candidates held back by the policy.
func (n *Negotiator) FlushLocalCandidates() {
	if n.state == domain.StateClosed || len(n.queuedLocal) == 0 {
		return
	}
	queued := n.queuedLocal
	n.queuedLocal = nil
	n.logger.Info().Int("count", len(queued)).Msg("flushing queued local candidates")
	for _, c := range queued {
		n.HandleLocalCandidate(c)
	}
}

// HandleTrack binds a video track to a slot: the first goes to A, every later
// one to B.
func (n *Negotiator) HandleTrack(ctx context.Context, track core.RemoteTrack) {
	if n.state == domain.StateClosed {
		return
	}
	if track.Kind() != domain.TrackVideo {
		n.logger.Info().Str("kind", string(track.Kind())).Str("track_id", track.ID()).Msg("ignoring non-video track")
		return
	}
	slot := domain.SlotB
	if n.videoTracks == 0 {
		slot = domain.SlotA
	}
	n.videoTracks++
	if prev := n.slots[slot]; prev != nil {
		n.logger.Info().Str("slot", slot.String()).Str("old_track_id", prev.ID()).Msg("slot overwritten")
	}
	n.slots[slot] = track
	n.logger.Info().Str("slot", slot.String()).Str("track_id", track.ID()).Str("stream_id", track.StreamID()).Msg("track assigned")
	if n.hooks.OnTrack != nil {
		n.hooks.OnTrack(ctx, slot, track)
	}
}

// HandlePeerState follows the connection state reported by the media stack.
func (n *Negotiator) HandlePeerState(st domain.PeerState) {
	if n.state == domain.StateClosed {
		return
	}
	switch st {
	case domain.PeerConnected:
		if n.state == domain.StateAnswered {
			n.setState(domain.StateActive)
		}
	case domain.PeerDisconnected:
		n.logger.Warn().Msg("peer disconnected, waiting for recovery")
	case domain.PeerFailed:
		n.fail(errors.New("peer connection failed"))
	case domain.PeerClosed:
		n.fail(ErrSessionClosed)
	case domain.PeerNew, domain.PeerConnecting:
	}
}

// HandleDataChannel accepts a remote-offered channel and only logs its traffic.
func (n *Negotiator) HandleDataChannel(dc core.DataChannel) {
	label := dc.Label()
	logger := n.logger.With().Str("label", label).Logger()
	logger.Info().Msg("data channel offered")
	dc.OnOpen(func() { logger.Info().Msg("data channel open") })
	dc.OnClose(func() { logger.Info().Msg("data channel closed") })
	dc.OnMessage(func(data []byte) { logger.Debug().Int("len", len(data)).Msg("data channel message") })
}

func (n *Negotiator) fail(err error) {
	if n.state == domain.StateClosed {
		return
	}
	n.logger.Error().Err(err).Str("state", n.state.String()).Msg("session failed")
	n.closeSession()
	if n.hooks.OnFailure != nil {
		n.hooks.OnFailure(err)
	}
}

// Close releases the media session. Safe to call repeatedly.
func (n *Negotiator) Close() {
	if n.state == domain.StateClosed {
		return
	}
	n.closeSession()
}

func (n *Negotiator) closeSession() {
	n.setState(domain.StateClosed)
	n.pendingRemote = nil
	n.queuedLocal = nil
	if err := n.session.Close(); err != nil {
		n.logger.Warn().Err(err).Msg("close media session")
	}
}
