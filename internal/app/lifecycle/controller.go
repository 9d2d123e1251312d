// Package lifecycle owns the single media session and the transports around
// it. All state changes happen on the goroutine running Controller.Run.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Teleop/internal/app/negotiator"
	"github.com/dkeye/Teleop/internal/app/sfu"
	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrStopped   = errors.New("controller stopped")
	ErrNoSession = fmt.Errorf("no media session: %w", core.ErrNotConnected)
)

type Options struct {
	SignalURL    string
	TelemetryURL string

	Signal       core.SignalTransport
	NewSession   core.MediaSessionFactory
	NewTelemetry core.TelemetryFactory
	// Renderer receives slot video. Tracks are assigned but not relayed when nil.
	Renderer core.Renderer
	Relays   *sfu.RelayManager
	Policy   negotiator.CandidatePolicy

	EventBuffer int
}

type eventKind int

const (
	evDirective eventKind = iota
	evSignalOpen
	evSignalEnvelope
	evSignalDisconnected
	evLocalCandidate
	evTrack
	evPeerState
	evDataChannel
)

func (k eventKind) String() string {
	return [...]string{
		"directive", "signal_open", "signal_envelope", "signal_disconnected",
		"local_candidate", "track", "peer_state", "data_channel",
	}[k]
}

// event is one unit of work for the loop. gen is the session generation for
// media events and the signaling epoch for signaling events.
type event struct {
	kind   eventKind
	gen    uint64
	active bool
	env    domain.Envelope
	cand   domain.ICECandidate
	ctx    context.Context
	track  core.RemoteTrack
	peer   domain.PeerState
	dc     core.DataChannel
	err    error
}

type telemetryRef struct {
	t core.TelemetryTransport
}

type Controller struct {
	opts   Options
	logger zerolog.Logger
	events chan event
	done   chan struct{}
	ctx    context.Context

	// Owned by the loop.
	directive  bool
	gen        uint64
	sigEpoch   uint64
	neg        *negotiator.Negotiator
	tele       core.TelemetryTransport
	sessCancel context.CancelFunc
	built      int
	hellos     int
	lastErr    error

	telemetry atomic.Pointer[telemetryRef]

	statusMu sync.RWMutex
	status   Status
}

func New(opts Options) *Controller {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	if opts.Relays == nil {
		opts.Relays = sfu.NewRelayManager()
	}
	if opts.Policy == nil {
		opts.Policy = negotiator.DropPolicy{}
	}
	c := &Controller{
		opts:   opts,
		logger: log.With().Str("module", "lifecycle").Logger(),
		events: make(chan event, opts.EventBuffer),
		done:   make(chan struct{}),
		ctx:    context.Background(),
	}
	c.publishStatus()
	return c
}

// Run processes events until ctx ends, then releases every resource.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	c.logger.Info().Msg("controller started")
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

// SetDirective requests the call to be active or inactive.
func (c *Controller) SetDirective(active bool) error {
	return c.post(event{kind: evDirective, active: active})
}

func (c *Controller) post(ev event) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

func (c *Controller) dispatch(ev event) {
	switch ev.kind {
	case evDirective:
		c.onDirective(ev.active)
	case evSignalOpen:
		c.onSignalOpen(ev.gen)
	case evSignalEnvelope:
		c.onSignalEnvelope(ev.gen, ev.env)
	case evSignalDisconnected:
		c.onSignalDisconnected(ev.gen, ev.err)
	case evLocalCandidate, evTrack, evPeerState, evDataChannel:
		c.onMediaEvent(ev)
	}
	c.publishStatus()
}

func (c *Controller) onDirective(active bool) {
	if !active {
		if c.directive {
			c.logger.Info().Msg("directive inactive")
		}
		c.directive = false
		c.teardown()
		return
	}
	if c.directive && c.neg != nil && c.neg.State() != domain.StateClosed {
		c.logger.Debug().Msg("directive already active")
		return
	}
	c.directive = true
	c.activate()
}

// Send forwards a telemetry frame to the current session's transport.
func (c *Controller) Send(msg domain.TelemetryMessage) error {
	ref := c.telemetry.Load()
	if ref == nil || ref.t == nil {
		return ErrNoSession
	}
	return ref.t.Send(msg)
}

func (c *Controller) shutdown() {
	c.logger.Info().Msg("controller stopping")
	c.teardown()
	if err := c.opts.Signal.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("close signaling")
	}
	c.publishStatus()
}
