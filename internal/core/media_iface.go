package core

import (
	"context"

	"github.com/dkeye/Teleop/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

//go:generate mockgen -destination=mocks/mock_media.go -package=mocks . MediaSession

// MediaSession is one answering peer connection. It is never reused: a new
// negotiation gets a new session.
type MediaSession interface {
	// Start configures internal callbacks and binds the session lifetime to ctx.
	Start(ctx context.Context) error
	// Close stops all underlying media resources. Safe to call repeatedly.
	Close() error
	IsClosed() bool

	SetRemoteDescription(domain.SessionDescription) error
	CreateAnswer() (domain.SessionDescription, error)
	SetLocalDescription(domain.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(domain.ICECandidate) error
	ConnectionState() domain.PeerState

	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(domain.ICECandidate))
	// OnTrack sets a callback invoked when a new remote track arrives.
	// ctx is cancelled when the session closes.
	OnTrack(func(ctx context.Context, track RemoteTrack))
	OnConnectionStateChange(func(domain.PeerState))
	// OnDataChannel sets a callback for channels opened by the remote peer.
	OnDataChannel(func(DataChannel))
}

// MediaSessionFactory builds a fresh, unstarted MediaSession.
type MediaSessionFactory func() (MediaSession, error)

// RemoteTrack is an inbound media track.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() domain.TrackKind
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// DataChannel is a channel announced by the remote peer.
type DataChannel interface {
	Label() string
	OnOpen(func())
	OnClose(func())
	OnMessage(func(data []byte))
}
