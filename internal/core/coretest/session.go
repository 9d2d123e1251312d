package coretest

import (
	"context"
	"sync"

	"github.com/dkeye/Teleop/internal/core"
	"github.com/dkeye/Teleop/internal/domain"
)

// Session is a scripted MediaSession. Fire* methods invoke the installed
// callbacks the way the media stack would.
type Session struct {
	mu sync.Mutex

	// Errors returned by the corresponding calls when set.
	RemoteErr    error
	AnswerErr    error
	LocalErr     error
	CandidateErr error

	Remote     []domain.SessionDescription
	Local      []domain.SessionDescription
	Candidates []domain.ICECandidate
	Started    bool
	Closes     int
	state      domain.PeerState
	ctx        context.Context
	cancel     context.CancelFunc

	onICE   func(domain.ICECandidate)
	onTrack func(context.Context, core.RemoteTrack)
	onState func(domain.PeerState)
	onDC    func(core.DataChannel)
}

var _ core.MediaSession = (*Session)(nil)

func NewSession() *Session { return &Session{} }

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closes++
	s.state = domain.PeerClosed
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Closes > 0
}

func (s *Session) SetRemoteDescription(sd domain.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RemoteErr != nil {
		return s.RemoteErr
	}
	s.Remote = append(s.Remote, sd)
	return nil
}

func (s *Session) CreateAnswer() (domain.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AnswerErr != nil {
		return domain.SessionDescription{}, s.AnswerErr
	}
	return domain.SessionDescription{Type: domain.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (s *Session) SetLocalDescription(sd domain.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LocalErr != nil {
		return s.LocalErr
	}
	s.Local = append(s.Local, sd)
	return nil
}

func (s *Session) AddICECandidate(c domain.ICECandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CandidateErr != nil {
		return s.CandidateErr
	}
	s.Candidates = append(s.Candidates, c)
	return nil
}

func (s *Session) ConnectionState() domain.PeerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) OnICECandidate(fn func(domain.ICECandidate)) {
	s.mu.Lock()
	s.onICE = fn
	s.mu.Unlock()
}

func (s *Session) OnTrack(fn func(context.Context, core.RemoteTrack)) {
	s.mu.Lock()
	s.onTrack = fn
	s.mu.Unlock()
}

func (s *Session) OnConnectionStateChange(fn func(domain.PeerState)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

func (s *Session) OnDataChannel(fn func(core.DataChannel)) {
	s.mu.Lock()
	s.onDC = fn
	s.mu.Unlock()
}

func (s *Session) FireCandidate(c domain.ICECandidate) {
	s.mu.Lock()
	fn := s.onICE
	s.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (s *Session) FireTrack(t core.RemoteTrack) {
	s.mu.Lock()
	fn, ctx := s.onTrack, s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if fn != nil {
		fn(ctx, t)
	}
}

func (s *Session) FireState(st domain.PeerState) {
	s.mu.Lock()
	s.state = st
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (s *Session) FireDataChannel(dc core.DataChannel) {
	s.mu.Lock()
	fn := s.onDC
	s.mu.Unlock()
	if fn != nil {
		fn(dc)
	}
}

// Snapshot copies the recorded calls.
func (s *Session) Snapshot() (remote, local []domain.SessionDescription, candidates []domain.ICECandidate, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SessionDescription(nil), s.Remote...),
		append([]domain.SessionDescription(nil), s.Local...),
		append([]domain.ICECandidate(nil), s.Candidates...),
		s.Closes
}

// DataChannel records the callbacks a negotiator installs.
type DataChannel struct {
	Name      string
	OpenFn    func()
	CloseFn   func()
	MessageFn func([]byte)
}

func (d *DataChannel) Label() string             { return d.Name }
func (d *DataChannel) OnOpen(fn func())          { d.OpenFn = fn }
func (d *DataChannel) OnClose(fn func())         { d.CloseFn = fn }
func (d *DataChannel) OnMessage(fn func([]byte)) { d.MessageFn = fn }
