package lifecycle

import (
	"github.com/dkeye/Teleop/internal/app/sfu"
	"github.com/dkeye/Teleop/internal/domain"
)

type Status struct {
	Active        bool                      `json:"active"`
	Generation    uint64                    `json:"generation"`
	Session       string                    `json:"session"`
	SlotA         string                    `json:"slot_a,omitempty"`
	SlotB         string                    `json:"slot_b,omitempty"`
	SessionsBuilt int                       `json:"sessions_built"`
	Hellos        int                       `json:"hellos"`
	LastError     string                    `json:"last_error,omitempty"`
	Signaling     string                    `json:"signaling"`
	TelemetryOpen bool                      `json:"telemetry_open"`
	Relays        map[string]sfu.RelayStats `json:"relays,omitempty"`
}

// publishStatus snapshots loop-owned fields for readers on other goroutines.
func (c *Controller) publishStatus() {
	st := Status{
		Active:        c.directive,
		Generation:    c.gen,
		Session:       "none",
		SessionsBuilt: c.built,
		Hellos:        c.hellos,
	}
	if c.neg != nil {
		st.Session = c.neg.State().String()
		if t := c.neg.Slot(domain.SlotA); t != nil {
			st.SlotA = t.ID()
		}
		if t := c.neg.Slot(domain.SlotB); t != nil {
			st.SlotB = t.ID()
		}
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	c.statusMu.Lock()
	c.status = st
	c.statusMu.Unlock()
}

// Status returns the latest snapshot plus live transport state.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	st := c.status
	c.statusMu.RUnlock()

	st.Signaling = c.opts.Signal.State().String()
	if ref := c.telemetry.Load(); ref != nil && ref.t != nil {
		st.TelemetryOpen = ref.t.IsOpen()
	}
	if stats := c.opts.Relays.Stats(); len(stats) > 0 {
		st.Relays = make(map[string]sfu.RelayStats, len(stats))
		for slot, s := range stats {
			st.Relays[slot.String()] = s
		}
	}
	return st
}
