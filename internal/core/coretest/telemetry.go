package coretest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
)

// Telemetry is an in-memory TelemetryTransport that opens on Connect.
type Telemetry struct {
	mu       sync.Mutex
	open     bool
	closed   bool
	URL      string
	Connects int
	Closes   int
	Frames   []domain.TelemetryMessage
}

var _ core.TelemetryTransport = (*Telemetry)(nil)

func (t *Telemetry) Connect(_ context.Context, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Connects++
	t.URL = url
	if !t.closed {
		t.open = true
	}
}

func (t *Telemetry) Send(msg domain.TelemetryMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return fmt.Errorf("telemetry: %w", core.ErrNotConnected)
	}
	t.Frames = append(t.Frames, msg)
	return nil
}

func (t *Telemetry) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *Telemetry) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closes++
	t.open = false
	t.closed = true
	return nil
}

func (t *Telemetry) FrameCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Frames)
}

// Hand is a TrackedHand with a fixed pose table.
type Hand struct {
	Side  domain.Handedness
	Poses map[string]domain.Pose
}

func (h Hand) Handedness() domain.Handedness { return h.Side }

func (h Hand) JointPose(joint string) (domain.Pose, bool) {
	p, ok := h.Poses[joint]
	return p, ok
}

// Hands is a HandSource returning a fixed set.
type Hands []core.TrackedHand

func (h Hands) TrackedHands() []core.TrackedHand { return h }
