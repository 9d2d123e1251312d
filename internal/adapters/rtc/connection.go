package rtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PeerSession is the answering side of one pion PeerConnection.
type PeerSession struct {
	pc     *webrtc.PeerConnection
	logger zerolog.Logger
	cancel context.CancelFunc
	closed atomic.Bool

	mu      sync.RWMutex
	onICE   func(domain.ICECandidate)
	onTrack func(ctx context.Context, track core.RemoteTrack)
	onState func(domain.PeerState)
	onDC    func(core.DataChannel)
}

var _ core.MediaSession = (*PeerSession)(nil)

func NewPeerSession(api *webrtc.API, cfg webrtc.Configuration, id string) (*PeerSession, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return &PeerSession{
		pc:     pc,
		logger: log.With().Str("module", "webrtc").Str("session", id).Logger(),
	}, nil
}

// NewSessionFactory returns a factory numbering its sessions.
func NewSessionFactory(api *webrtc.API, cfg webrtc.Configuration) core.MediaSessionFactory {
	var n atomic.Uint64
	return func() (core.MediaSession, error) {
		return NewPeerSession(api, cfg, fmt.Sprintf("s%d", n.Add(1)))
	}
}

func (s *PeerSession) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
		s.logger.Info().Str("ice_state", st.String()).Msg("ICE state")
	})

	s.pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.logger.Info().Str("peer_connection_state", st.String()).Msg("Peer state")
		if st == webrtc.PeerConnectionStateFailed || st == webrtc.PeerConnectionStateClosed {
			cancel()
		}
		s.mu.RLock()
		fn := s.onState
		s.mu.RUnlock()
		if fn != nil {
			fn(peerState(st))
		}
	})

	s.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			s.logger.Debug().Msg("ICE gathering complete")
			return
		}
		ci := c.ToJSON()
		var idx uint16
		if ci.SDPMLineIndex != nil {
			idx = *ci.SDPMLineIndex
		}
		s.mu.RLock()
		fn := s.onICE
		s.mu.RUnlock()
		if fn != nil {
			fn(domain.ICECandidate{Candidate: ci.Candidate, SDPMLineIndex: idx})
		}
	})

	s.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		s.mu.RLock()
		fn := s.onTrack
		s.mu.RUnlock()
		if fn != nil {
			fn(ctx, remoteTrack{track})
		}
	})

	s.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		s.mu.RLock()
		fn := s.onDC
		s.mu.RUnlock()
		if fn != nil {
			fn(dataChannel{dc})
		}
	})

	return nil
}

func (s *PeerSession) SetRemoteDescription(sd domain.SessionDescription) error {
	return s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(sd.Type),
		SDP:  sd.SDP,
	})
}

func (s *PeerSession) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return domain.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

// SetLocalDescription starts trickle gathering; candidates arrive through
// OnICECandidate.
func (s *PeerSession) SetLocalDescription(sd domain.SessionDescription) error {
	return s.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(sd.Type),
		SDP:  sd.SDP,
	})
}

func (s *PeerSession) AddICECandidate(c domain.ICECandidate) error {
	idx := c.SDPMLineIndex
	return s.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMLineIndex: &idx,
	})
}

func (s *PeerSession) ConnectionState() domain.PeerState {
	return peerState(s.pc.ConnectionState())
}

func (s *PeerSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.pc.Close(); err != nil {
		s.logger.Error().Err(err).Msg("close error")
		return err
	}
	s.logger.Info().Msg("closed")
	return nil
}

func (s *PeerSession) IsClosed() bool { return s.closed.Load() }

func (s *PeerSession) OnICECandidate(fn func(domain.ICECandidate)) {
	s.mu.Lock()
	s.onICE = fn
	s.mu.Unlock()
}

// OnTrack sets application-level callback for remote tracks.
func (s *PeerSession) OnTrack(fn func(ctx context.Context, track core.RemoteTrack)) {
	s.mu.Lock()
	s.onTrack = fn
	s.mu.Unlock()
}

func (s *PeerSession) OnConnectionStateChange(fn func(domain.PeerState)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

func (s *PeerSession) OnDataChannel(fn func(core.DataChannel)) {
	s.mu.Lock()
	s.onDC = fn
	s.mu.Unlock()
}

func peerState(st webrtc.PeerConnectionState) domain.PeerState {
	switch st {
	case webrtc.PeerConnectionStateConnecting:
		return domain.PeerConnecting
	case webrtc.PeerConnectionStateConnected:
		return domain.PeerConnected
	case webrtc.PeerConnectionStateDisconnected:
		return domain.PeerDisconnected
	case webrtc.PeerConnectionStateFailed:
		return domain.PeerFailed
	case webrtc.PeerConnectionStateClosed:
		return domain.PeerClosed
	}
	return domain.PeerNew
}

type remoteTrack struct {
	*webrtc.TrackRemote
}

func (t remoteTrack) Kind() domain.TrackKind {
	return domain.TrackKind(t.TrackRemote.Kind().String())
}

type dataChannel struct {
	dc *webrtc.DataChannel
}

func (d dataChannel) Label() string     { return d.dc.Label() }
func (d dataChannel) OnOpen(fn func())  { d.dc.OnOpen(fn) }
func (d dataChannel) OnClose(fn func()) { d.dc.OnClose(fn) }
func (d dataChannel) OnMessage(fn func([]byte)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) { fn(msg.Data) })
}
