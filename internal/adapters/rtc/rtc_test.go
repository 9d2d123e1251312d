package rtc

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/Teleop/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

func TestLoggerFactoryScopesAndLevels(t *testing.T) {
	var buf bytes.Buffer
	lf := NewLoggerFactory(zerolog.New(&buf), zerolog.WarnLevel)
	l := lf.NewLogger("ice")
	l.Debugf("hidden %d", 1)
	l.Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line leaked: %s", out)
	}
	if !strings.Contains(out, `"scope":"ice"`) || !strings.Contains(out, "shown 2") {
		t.Errorf("warn line missing or unscoped: %s", out)
	}
}

func TestConfigFromURLs(t *testing.T) {
	cfg := ConfigFromURLs([]string{"stun:a:3478", "stun:b:3478"})
	if len(cfg.ICEServers) != 2 || cfg.ICEServers[1].URLs[0] != "stun:b:3478" {
		t.Fatalf("ICEServers = %+v", cfg.ICEServers)
	}
	if got := ConfigFromURLs(nil); len(got.ICEServers) != 1 {
		t.Fatalf("default ICEServers = %+v", got.ICEServers)
	}
}

func TestFetchRTCConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rtc-config" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"iceServers":[{"urls":["turn:turn.example:3478"],"username":"u","credential":"p"}]}`))
	}))
	defer srv.Close()

	cfg, err := FetchRTCConfig(context.Background(), srv.Client(), srv.URL+"/rtc-config")
	if err != nil {
		t.Fatalf("FetchRTCConfig: %v", err)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0].Username != "u" {
		t.Fatalf("ICEServers = %+v", cfg.ICEServers)
	}

	if _, err := FetchRTCConfig(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Fatal("expected error on 404")
	}
	fallback := ResolveConfig(context.Background(), srv.URL+"/missing", []string{"stun:x:1"})
	if fallback.ICEServers[0].URLs[0] != "stun:x:1" {
		t.Fatalf("fallback = %+v", fallback.ICEServers)
	}
}

func TestPeerStateMapping(t *testing.T) {
	cases := map[webrtc.PeerConnectionState]domain.PeerState{
		webrtc.PeerConnectionStateNew:          domain.PeerNew,
		webrtc.PeerConnectionStateConnecting:   domain.PeerConnecting,
		webrtc.PeerConnectionStateConnected:    domain.PeerConnected,
		webrtc.PeerConnectionStateDisconnected: domain.PeerDisconnected,
		webrtc.PeerConnectionStateFailed:       domain.PeerFailed,
		webrtc.PeerConnectionStateClosed:       domain.PeerClosed,
	}
	for in, want := range cases {
		if got := peerState(in); got != want {
			t.Errorf("peerState(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestPeerSessionRejectsMalformedOffer(t *testing.T) {
	api, err := NewAPI(APIOptions{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewPeerSession(api, webrtc.Configuration{}, "t")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRemoteDescription(domain.SessionDescription{Type: "offer", SDP: "garbage"}); err == nil {
		t.Error("malformed offer accepted")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !s.IsClosed() {
		t.Error("IsClosed false after Close")
	}
}
