package sfu

import (
	"context"
	"sync/atomic"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// Relay copies RTP from one remote track into one sink.
type Relay struct {
	Src core.RemoteTrack
	out *OutTrack

	cancel context.CancelFunc
	done   chan struct{}

	packets atomic.Uint64
	errors  atomic.Uint64
}

func NewRelay(src core.RemoteTrack, sink core.VideoSink, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:    src,
		out:    NewOutTrack(sink),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// loop reads RTP packets from the source track until the track ends, ctx is
// cancelled or the out track is deleted.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking out track for delete")
			r.out.MarkDelete()
			return
		default:
		}
		if r.out.GetState() == TrackStateDelete {
			logger.Info().Msg("out track deleted, stopping relay")
			return
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay read RTP ended, stopping")
			r.out.MarkDelete()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	switch r.out.GetState() {
	case TrackStateDelete, TrackStateMuted:
		return
	case TrackStateOk:
	}
	if err := r.out.Sink.WriteRTP(pkt); err != nil {
		// One failed write must not blank the slot.
		if r.errors.Add(1)%100 == 1 {
			logger.Warn().Err(err).Uint64("errors", r.errors.Load()).Msg("relay write RTP error")
		}
		return
	}
	r.packets.Add(1)
}

func (r *Relay) stop() {
	r.out.MarkDelete()
	if r.cancel != nil {
		r.cancel()
	}
}

// Done is closed when the loop has exited.
func (r *Relay) Done() <-chan struct{} { return r.done }
