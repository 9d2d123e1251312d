package core

import (
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/pion/rtp"
)

// VideoSink consumes the RTP stream of one slot.
type VideoSink interface {
	WriteRTP(*rtp.Packet) error
}

// Renderer exposes one independently updatable sink per slot.
type Renderer interface {
	Sink(slot domain.Slot) VideoSink
}
