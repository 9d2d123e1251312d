package core

import (
	"context"

	"github.com/dkeye/Teleop/internal/domain"
)

type SignalState int

const (
	SignalDisconnected SignalState = iota
	SignalConnecting
	SignalOpen
)

func (s SignalState) String() string {
	switch s {
	case SignalConnecting:
		return "connecting"
	case SignalOpen:
		return "open"
	}
	return "disconnected"
}

// SignalHandler receives the events of one Connect call.
type SignalHandler struct {
	OnOpen     func()
	OnEnvelope func(domain.Envelope)
	// OnDisconnected fires once per Connect, for a failed dial as well as
	// for a close after open.
	OnDisconnected func(err error)
}

// SignalTransport is the signaling channel to the robot. It never reconnects
// on its own.
type SignalTransport interface {
	// Connect dials asynchronously and sends hello once the socket is open.
	Connect(ctx context.Context, url string, h SignalHandler)
	Send(domain.Envelope) error
	State() SignalState
	Close() error
}
