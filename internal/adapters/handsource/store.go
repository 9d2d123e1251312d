// Package handsource keeps the latest tracked pose of each hand as pushed by a
// tracking client.
package handsource

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownJoint = errors.New("unknown joint")
	ErrPoseSize     = errors.New("pose must have 16 values")
)

// Update is one hand report. Joints maps joint names to column-major 4x4
// transforms. Tracked=false drops the hand immediately.
type Update struct {
	Hand    string               `json:"hand" cbor:"hand"`
	Tracked *bool                `json:"tracked,omitempty" cbor:"tracked,omitempty"`
	Joints  map[string][]float32 `json:"joints" cbor:"joints"`
}

// Decode parses a JSON or CBOR update.
func Decode(data []byte, binary bool) (Update, error) {
	var u Update
	var err error
	if binary {
		err = cbor.Unmarshal(data, &u)
	} else {
		err = json.Unmarshal(data, &u)
	}
	if err != nil {
		return Update{}, fmt.Errorf("decode hand update: %w", err)
	}
	return u, nil
}

var jointIndex = func() map[string]int {
	m := make(map[string]int, domain.JointCount)
	for i, name := range domain.Joints {
		m[name] = i
	}
	return m
}()

type entry struct {
	poses map[string]domain.Pose
	at    time.Time
}

// Store is a core.HandSource. Hands not updated within staleAfter are
// reported as untracked.
type Store struct {
	mu         sync.RWMutex
	hands      map[domain.Handedness]entry
	staleAfter time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

var _ core.HandSource = (*Store)(nil)

func NewStore(staleAfter time.Duration) *Store {
	return &Store{
		hands:      make(map[domain.Handedness]entry, 2),
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     log.With().Str("module", "handsource").Logger(),
	}
}

// Apply validates u and replaces the stored pose of its hand. A rejected
// update leaves the previous pose in place.
func (s *Store) Apply(u Update) error {
	h, err := domain.ParseHandedness(u.Hand)
	if err != nil {
		return err
	}
	if u.Tracked != nil && !*u.Tracked {
		s.mu.Lock()
		delete(s.hands, h)
		s.mu.Unlock()
		return nil
	}

	poses := make(map[string]domain.Pose, len(u.Joints))
	for name, vals := range u.Joints {
		if _, ok := jointIndex[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownJoint, name)
		}
		if len(vals) != domain.PoseSize {
			return fmt.Errorf("%s: %w, got %d", name, ErrPoseSize, len(vals))
		}
		var p domain.Pose
		copy(p[:], vals)
		poses[name] = p
	}

	s.mu.Lock()
	s.hands[h] = entry{poses: poses, at: s.now()}
	s.mu.Unlock()
	return nil
}

// Clear forgets both hands.
func (s *Store) Clear() {
	s.mu.Lock()
	clear(s.hands)
	s.mu.Unlock()
}

// TrackedHands returns fresh hands, left first.
func (s *Store) TrackedHands() []core.TrackedHand {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.TrackedHand, 0, 2)
	for _, h := range [...]domain.Handedness{domain.HandLeft, domain.HandRight} {
		e, ok := s.hands[h]
		if !ok {
			continue
		}
		if s.staleAfter > 0 && now.Sub(e.at) > s.staleAfter {
			continue
		}
		out = append(out, hand{side: h, poses: e.poses})
	}
	return out
}

type hand struct {
	side  domain.Handedness
	poses map[string]domain.Pose
}

func (h hand) Handedness() domain.Handedness { return h.side }

func (h hand) JointPose(joint string) (domain.Pose, bool) {
	p, ok := h.poses[joint]
	return p, ok
}
