// Package robot simulates the robot end of a teleop link: it registers with
// the relay, offers two camera tracks whenever an operator says hello and
// counts the pose frames it receives.
package robot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dkeye/Teleop/internal/adapters/ws"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrNoSignaling = errors.New("robot: signaling not connected")

// Camera track ids, in the order they are added to the offer.
var CameraIDs = [...]string{"cam-left", "cam-right"}

const streamID = "stereo"

type Options struct {
	SignalURL    string
	TelemetryURL string
	RobotID      string
	FPS          int
	// MaxRetries bounds consecutive failed connection attempts per channel.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	API       *webrtc.API
	RTCConfig webrtc.Configuration

	// CandidatesBeforeOffer holds the offer until gathering completes so the
	// operator sees every trickled candidate before the offer.
	CandidatesBeforeOffer bool
}

func (o Options) withDefaults() Options {
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = time.Second
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 30 * time.Second
	}
	if o.RobotID == "" {
		o.RobotID = "box"
	}
	if o.API == nil {
		o.API = webrtc.NewAPI()
	}
	return o
}

type Stats struct {
	Offers           uint64 `json:"offers"`
	Answers          uint64 `json:"answers"`
	RemoteCandidates uint64 `json:"remote_candidates"`
	TelemetryFrames  uint64 `json:"telemetry_frames"`
	PeerState        string `json:"peer_state"`
}

type Robot struct {
	opts   Options
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu        sync.Mutex
	signal    *ws.Conn
	pc        *webrtc.PeerConnection
	stopMedia context.CancelFunc
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	offers     atomic.Uint64
	answers    atomic.Uint64
	candidates atomic.Uint64
	frames     atomic.Uint64
	peerState  atomic.Value
}

func New(opts Options) *Robot {
	r := &Robot{
		opts:   opts.withDefaults(),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: log.With().Str("module", "robot").Str("robot_id", opts.RobotID).Logger(),
	}
	r.peerState.Store(webrtc.PeerConnectionStateNew.String())
	return r
}

// Run keeps the signaling and telemetry channels connected until ctx ends or
// a channel exhausts its retries.
func (r *Robot) Run(ctx context.Context) error {
	defer r.closePeer()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.connectLoop(gctx, "signal", r.opts.SignalURL, r.serveSignal)
	})
	if r.opts.TelemetryURL != "" {
		g.Go(func() error {
			return r.connectLoop(gctx, "telemetry", r.opts.TelemetryURL, r.serveTelemetry)
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Robot) Stats() Stats {
	return Stats{
		Offers:           r.offers.Load(),
		Answers:          r.answers.Load(),
		RemoteCandidates: r.candidates.Load(),
		TelemetryFrames:  r.frames.Load(),
		PeerState:        r.peerState.Load().(string),
	}
}

// connectLoop dials url and serves the connection, reconnecting with
// exponential backoff. A successful dial resets the retry budget.
func (r *Robot) connectLoop(ctx context.Context, name, url string, serve func(context.Context, *ws.Conn) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.opts.InitialInterval
	eb.Multiplier = 2
	eb.MaxInterval = r.opts.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.opts.MaxRetries), ctx)
	logger := r.logger.With().Str("channel", name).Logger()

	op := func() error {
		raw, _, err := r.dialer.DialContext(ctx, url, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", name, err)
		}
		b.Reset()
		logger.Info().Str("url", url).Msg("connected")
		conn := ws.New(raw, ws.Options{SendBuffer: 64, PingPeriod: 20 * time.Second}, logger)
		err = serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%s connection lost: %w", name, err)
	}
	err := backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", next).Msg("reconnecting")
	})
	if err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("giving up")
	}
	return err
}

func announce(conn *ws.Conn, robotID string) error {
	b, err := json.Marshal(domain.RoleAnnouncement{Role: domain.RoleRobot, RobotID: robotID})
	if err != nil {
		return err
	}
	return conn.TrySend(b)
}

func (r *Robot) serveSignal(ctx context.Context, conn *ws.Conn) error {
	if err := announce(conn, r.opts.RobotID); err != nil {
		return err
	}
	r.mu.Lock()
	r.signal = conn
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		if r.signal == conn {
			r.signal = nil
		}
		r.mu.Unlock()
	}()

	return conn.Run(ctx, func(data []byte) {
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			r.logger.Warn().Err(err).Msg("bad signaling message")
			return
		}
		r.handleEnvelope(ctx, env)
	})
}

func (r *Robot) serveTelemetry(ctx context.Context, conn *ws.Conn) error {
	if err := announce(conn, r.opts.RobotID); err != nil {
		return err
	}
	return conn.RunMessages(ctx, func(mt int, data []byte) {
		var msg domain.TelemetryMessage
		var err error
		if mt == websocket.BinaryMessage {
			err = cbor.Unmarshal(data, &msg)
		} else {
			err = json.Unmarshal(data, &msg)
		}
		if err != nil {
			r.logger.Warn().Err(err).Msg("bad telemetry frame")
			return
		}
		r.frames.Add(1)
	})
}

func (r *Robot) send(env domain.Envelope) error {
	r.mu.Lock()
	conn := r.signal
	r.mu.Unlock()
	if conn == nil {
		return ErrNoSignaling
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.TrySend(b)
}

func (r *Robot) handleEnvelope(ctx context.Context, env domain.Envelope) {
	switch env.Kind {
	case domain.KindHello:
		r.logger.Info().Msg("hello received, starting new session")
		if err := r.startSession(ctx); err != nil {
			r.logger.Error().Err(err).Msg("start session")
		}
	case domain.KindAnswer:
		r.handleAnswer(*env.SDP)
	case domain.KindCandidate:
		r.handleCandidate(*env.ICE)
	case domain.KindOffer:
		r.logger.Warn().Msg("unexpected offer ignored")
	}
}

func (r *Robot) startSession(ctx context.Context) error {
	r.closePeer()

	pc, err := r.opts.API.NewPeerConnection(r.opts.RTCConfig)
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}
	tracks := make([]*webrtc.TrackLocalStaticSample, 0, len(CameraIDs))
	for _, id := range CameraIDs {
		t, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, id, streamID)
		if err != nil {
			_ = pc.Close()
			return fmt.Errorf("track %s: %w", id, err)
		}
		sender, err := pc.AddTrack(t)
		if err != nil {
			_ = pc.Close()
			return fmt.Errorf("add track %s: %w", id, err)
		}
		go drainRTCP(sender)
		tracks = append(tracks, t)
	}
	if _, err := pc.CreateDataChannel("control", nil); err != nil {
		_ = pc.Close()
		return fmt.Errorf("data channel: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		ci := c.ToJSON()
		var idx uint16
		if ci.SDPMLineIndex != nil {
			idx = *ci.SDPMLineIndex
		}
		if err := r.send(domain.Candidate(domain.ICECandidate{Candidate: ci.Candidate, SDPMLineIndex: idx})); err != nil {
			r.logger.Warn().Err(err).Msg("local candidate dropped")
		}
	})
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		r.peerState.Store(st.String())
		r.logger.Info().Str("state", st.String()).Msg("peer state")
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("create offer: %w", err)
	}
	var gathered <-chan struct{}
	if r.opts.CandidatesBeforeOffer {
		gathered = webrtc.GatheringCompletePromise(pc)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return fmt.Errorf("set local description: %w", err)
	}

	mediaCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.pc = pc
	r.stopMedia = cancel
	r.remoteSet = false
	r.pending = nil
	r.mu.Unlock()
	go r.writeSamples(mediaCtx, tracks)

	if gathered != nil {
		select {
		case <-gathered:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.offers.Add(1)
	return r.send(domain.Offer(offer.SDP))
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (r *Robot) handleAnswer(sd domain.SessionDescription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pc == nil {
		r.logger.Warn().Msg("answer without session ignored")
		return
	}
	err := r.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sd.SDP})
	if err != nil {
		r.logger.Error().Err(err).Msg("set remote description")
		return
	}
	r.answers.Add(1)
	r.remoteSet = true
	for _, c := range r.pending {
		if err := r.pc.AddICECandidate(c); err != nil {
			r.logger.Warn().Err(err).Msg("buffered candidate rejected")
		}
	}
	r.pending = nil
}

func (r *Robot) handleCandidate(c domain.ICECandidate) {
	idx := c.SDPMLineIndex
	ci := webrtc.ICECandidateInit{Candidate: c.Candidate, SDPMLineIndex: &idx}
	r.candidates.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pc == nil || !r.remoteSet {
		r.pending = append(r.pending, ci)
		return
	}
	if err := r.pc.AddICECandidate(ci); err != nil {
		r.logger.Warn().Err(err).Msg("remote candidate rejected")
	}
}

func (r *Robot) closePeer() {
	r.mu.Lock()
	pc, stop := r.pc, r.stopMedia
	r.pc, r.stopMedia = nil, nil
	r.remoteSet = false
	r.pending = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("close peer connection")
		}
	}
}
