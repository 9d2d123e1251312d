// Package relay pairs one robot with one operator per robot id and forwards
// messages between them unchanged.
package relay

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/Teleop/internal/adapters/ws"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/dkeye/Teleop/internal/ratelimit"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Channel separates signaling pairs from telemetry pairs.
type Channel string

const (
	ChannelSignal    Channel = "signal"
	ChannelTelemetry Channel = "telemetry"
)

// DefaultRobotID is used when a connection names no robot.
const DefaultRobotID = "default"

type pairKey struct {
	ch      Channel
	robotID string
}

type peer struct {
	id      string
	role    string
	robotID string
	ch      Channel
	conn    *ws.Conn
}

type pair struct {
	robot  *peer
	teleop *peer
}

func (p *pair) slot(role string) **peer {
	if role == domain.RoleRobot {
		return &p.robot
	}
	return &p.teleop
}

type Stats struct {
	Pairs     int    `json:"pairs"`
	Forwarded uint64 `json:"forwarded"`
	Dropped   uint64 `json:"dropped"`
	Limited   uint64 `json:"limited"`
}

type Hub struct {
	mu        sync.Mutex
	pairs     map[pairKey]*pair
	forwarded uint64
	dropped   uint64
	limitedN  uint64

	limiter *ratelimit.Keyed[string]
	opts    ws.Options
	logger  zerolog.Logger
	limited zerolog.Logger
}

// NewHub builds a hub that admits at most limit messages per interval from
// each connection. limit <= 0 disables the limit.
func NewHub(limit int, interval time.Duration, opts ws.Options) *Hub {
	h := &Hub{
		pairs:  make(map[pairKey]*pair),
		opts:   opts,
		logger: log.With().Str("module", "relay").Logger(),
	}
	if limit > 0 {
		h.limiter = ratelimit.NewKeyed[string](limit, interval)
	}
	h.limited = h.logger.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second})
	return h
}

// Serve runs one relay connection until it closes. A connection is assigned
// its role by the role/robot_id query parameters, or else by a role
// announcement as its first message. Anything else makes it an operator.
func (h *Hub) Serve(ctx context.Context, ch Channel, raw *websocket.Conn, query url.Values) error {
	p := &peer{id: uuid.NewString(), ch: ch}
	logger := h.logger.With().Str("conn", p.id).Str("channel", string(ch)).Logger()
	p.conn = ws.New(raw, h.opts, logger)

	registered := false
	if role := query.Get("role"); role == domain.RoleRobot || role == domain.RoleTeleop {
		h.register(p, role, query.Get("robot_id"))
		registered = true
	}

	err := p.conn.RunMessages(ctx, func(mt int, data []byte) {
		if !registered {
			registered = true
			if ann, ok := parseAnnouncement(mt, data); ok {
				h.register(p, ann.Role, ann.RobotID)
				return
			}
			h.register(p, domain.RoleTeleop, query.Get("robot_id"))
		}
		h.forward(p, mt, data)
	})
	h.unregister(p)
	logger.Info().Err(err).Msg("relay connection closed")
	return err
}

func parseAnnouncement(mt int, data []byte) (domain.RoleAnnouncement, bool) {
	var ann domain.RoleAnnouncement
	var err error
	if mt == websocket.BinaryMessage {
		err = cbor.Unmarshal(data, &ann)
	} else {
		err = json.Unmarshal(data, &ann)
	}
	if err != nil {
		return ann, false
	}
	return ann, ann.Role == domain.RoleRobot || ann.Role == domain.RoleTeleop
}

func (h *Hub) register(p *peer, role, robotID string) {
	if robotID == "" {
		robotID = DefaultRobotID
	}
	p.role, p.robotID = role, robotID
	key := pairKey{ch: p.ch, robotID: robotID}

	h.mu.Lock()
	pr, ok := h.pairs[key]
	if !ok {
		pr = &pair{}
		h.pairs[key] = pr
	}
	slot := pr.slot(role)
	old := *slot
	*slot = p
	h.mu.Unlock()

	if old != nil {
		h.logger.Info().Str("conn", old.id).Str("role", role).Str("robot_id", robotID).Msg("replaced by newer connection")
		old.conn.Close()
	}
	h.logger.Info().Str("conn", p.id).Str("channel", string(p.ch)).Str("role", role).Str("robot_id", robotID).Msg("registered")
}

func (h *Hub) unregister(p *peer) {
	if h.limiter != nil {
		h.limiter.Forget(p.id)
	}
	if p.role == "" {
		return
	}
	key := pairKey{ch: p.ch, robotID: p.robotID}
	h.mu.Lock()
	defer h.mu.Unlock()
	pr, ok := h.pairs[key]
	if !ok {
		return
	}
	if slot := pr.slot(p.role); *slot == p {
		*slot = nil
	}
	if pr.robot == nil && pr.teleop == nil {
		delete(h.pairs, key)
	}
}

func (h *Hub) forward(from *peer, mt int, data []byte) {
	if h.limiter != nil && !h.limiter.Allow(from.id) {
		h.mu.Lock()
		h.limitedN++
		h.mu.Unlock()
		h.limited.Warn().Str("conn", from.id).Msg("rate limit exceeded, message dropped")
		return
	}

	h.mu.Lock()
	var to *peer
	if pr, ok := h.pairs[pairKey{ch: from.ch, robotID: from.robotID}]; ok {
		if from.role == domain.RoleRobot {
			to = pr.teleop
		} else {
			to = pr.robot
		}
	}
	h.mu.Unlock()

	if to == nil {
		h.count(false)
		h.logger.Debug().Str("conn", from.id).Str("role", from.role).Msg("no counterpart, message dropped")
		return
	}
	if err := to.conn.TrySendMessage(mt, data); err != nil {
		h.count(false)
		h.limited.Warn().Err(err).Str("to", to.id).Msg("forward failed")
		return
	}
	h.count(true)
}

func (h *Hub) count(ok bool) {
	h.mu.Lock()
	if ok {
		h.forwarded++
	} else {
		h.dropped++
	}
	h.mu.Unlock()
}

// Connected reports whether role is connected for robotID on ch.
func (h *Hub) Connected(ch Channel, robotID, role string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	pr, ok := h.pairs[pairKey{ch: ch, robotID: robotID}]
	return ok && *pr.slot(role) != nil
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Pairs:     len(h.pairs),
		Forwarded: h.forwarded,
		Dropped:   h.dropped,
		Limited:   h.limitedN,
	}
}
