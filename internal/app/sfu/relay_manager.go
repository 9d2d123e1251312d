package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/rs/zerolog/log"
)

// RelayManager runs at most one relay per slot.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[domain.Slot]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[domain.Slot]*Relay),
	}
}

// StartRelay starts forwarding track into sink, replacing whatever relay
// was bound to slot.
func (m *RelayManager) StartRelay(ctx context.Context, slot domain.Slot, track core.RemoteTrack, sink core.VideoSink) *Relay {
	logger := log.With().
		Str("module", "sfu").
		Str("slot", slot.String()).
		Str("track_id", track.ID()).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(track, sink, cancel)

	m.mu.Lock()
	if old, ok := m.relays[slot]; ok {
		logger.Info().Str("old_track_id", old.Src.ID()).Msg("replacing existing relay for slot")
		old.stop()
	}
	m.relays[slot] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go relay.loop(relayCtx, &logger)
	return relay
}

// StopRelay stops the relay bound to slot, if any.
func (m *RelayManager) StopRelay(slot domain.Slot) {
	m.mu.Lock()
	relay, ok := m.relays[slot]
	if ok {
		delete(m.relays, slot)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.stop()
}

func (m *RelayManager) StopAll() {
	m.mu.Lock()
	relays := m.relays
	m.relays = make(map[domain.Slot]*Relay)
	m.mu.Unlock()
	for _, r := range relays {
		r.stop()
	}
}

// SetMuted pauses or resumes forwarding for slot.
func (m *RelayManager) SetMuted(slot domain.Slot, muted bool) bool {
	m.mu.RLock()
	relay, ok := m.relays[slot]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if muted {
		relay.out.MarkMuted()
	} else {
		relay.out.MarkOk()
	}
	return true
}

// HasRelay reports whether a relay exists for slot.
func (m *RelayManager) HasRelay(slot domain.Slot) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[slot]
	return ok
}

// SrcTrack returns the source track for a given slot.
func (m *RelayManager) SrcTrack(slot domain.Slot) (core.RemoteTrack, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	relay, ok := m.relays[slot]
	if !ok {
		return nil, false
	}
	return relay.Src, true
}

type RelayStats struct {
	TrackID string `json:"track_id"`
	State   string `json:"state"`
	Packets uint64 `json:"packets"`
	Errors  uint64 `json:"errors"`
}

func (m *RelayManager) Stats() map[domain.Slot]RelayStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.Slot]RelayStats, len(m.relays))
	for slot, r := range m.relays {
		out[slot] = RelayStats{
			TrackID: r.Src.ID(),
			State:   r.out.GetState().String(),
			Packets: r.packets.Load(),
			Errors:  r.errors.Load(),
		}
	}
	return out
}
