// Package sampler turns tracked hand poses into rate-limited telemetry frames.
package sampler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/dkeye/Teleop/internal/ratelimit"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultInterval admits at most 60 frames per second.
const DefaultInterval = (time.Second + 59) / 60

type Sampler struct {
	sink   core.TelemetrySender
	gate   *ratelimit.Window
	logger zerolog.Logger

	mu     sync.RWMutex
	source core.HandSource

	accepted atomic.Uint64
	gated    atomic.Uint64
	failed   atomic.Uint64
}

func New(sink core.TelemetrySender, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		sink:   sink,
		gate:   ratelimit.NewWindow(1, interval),
		logger: log.With().Str("module", "sampler").Logger(),
	}
}

// SetSource installs the tracking source. nil means no source is available
// and ticks produce nothing.
func (s *Sampler) SetSource(src core.HandSource) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

func (s *Sampler) Interval() time.Duration { return s.gate.Interval() }

// OnTick samples the source at now and hands the frame to the sink if the
// rate gate admits it. Rejected ticks are dropped, never queued. It reports
// whether a frame was handed over.
func (s *Sampler) OnTick(now time.Time) bool {
	s.mu.RLock()
	src := s.source
	s.mu.RUnlock()
	if src == nil {
		return false
	}
	if !s.gate.AllowAt(now) {
		s.gated.Add(1)
		return false
	}

	msg := Sample(src)
	s.accepted.Add(1)
	if err := s.sink.Send(msg); err != nil {
		s.failed.Add(1)
		s.logger.Trace().Err(err).Msg("frame not delivered")
	}
	return true
}

// Run ticks the sampler every tick until ctx ends. The tick period is
// independent of the send interval; the gate decides what goes out.
func (s *Sampler) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = s.Interval()
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			s.OnTick(now)
		}
	}
}

// Sample builds one message from every tracked hand. Joints the source cannot
// resolve are filled with the identity transform.
func Sample(src core.HandSource) domain.TelemetryMessage {
	var msg domain.TelemetryMessage
	for _, hand := range src.TrackedHands() {
		h := hand.Handedness()
		if h != domain.HandLeft && h != domain.HandRight {
			continue
		}
		frame := new(domain.JointFrame)
		for i, name := range domain.Joints {
			p, ok := hand.JointPose(name)
			if !ok {
				p = domain.IdentityPose
			}
			frame.SetJoint(i, p)
		}
		msg.Set(h, frame)
	}
	return msg
}

type Stats struct {
	Accepted uint64 `json:"accepted"`
	Gated    uint64 `json:"gated"`
	Failed   uint64 `json:"failed"`
}

func (s *Sampler) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Gated:    s.gated.Load(),
		Failed:   s.failed.Load(),
	}
}
