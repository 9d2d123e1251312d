package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Teleop/internal/domain"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

type message struct {
	typ  int
	data []byte
}

func robotEndpoint(t *testing.T) (string, <-chan message) {
	t.Helper()
	got := make(chan message, 16)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			got <- message{typ: mt, data: data}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), got
}

func waitOpen(t *testing.T, tr *Transport) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !tr.IsOpen() {
		if time.Now().After(deadline) {
			t.Fatal("transport never opened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func next(t *testing.T, ch <-chan message) message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("no message from transport")
	}
	return message{}
}

func frameWith(v float32) *domain.JointFrame {
	f := &domain.JointFrame{}
	for i := range f {
		f[i] = v
	}
	return f
}

func TestTransportAnnouncesRoleFirst(t *testing.T) {
	url, got := robotEndpoint(t)
	tr := New(Options{RobotID: "box"})
	defer tr.Close()

	if err := tr.Send(domain.TelemetryMessage{Left: frameWith(1)}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Send before connect = %v, want ErrNotOpen", err)
	}

	tr.Connect(context.Background(), url)
	waitOpen(t, tr)
	if err := tr.Send(domain.TelemetryMessage{Right: frameWith(0.25)}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	first := next(t, got)
	if first.typ != websocket.TextMessage {
		t.Errorf("role message type = %d, want text", first.typ)
	}
	var role domain.RoleAnnouncement
	if err := json.Unmarshal(first.data, &role); err != nil {
		t.Fatalf("decode role: %v", err)
	}
	if role.Role != "teleop" || role.RobotID != "box" {
		t.Errorf("role = %+v", role)
	}

	var frame map[string][]float32
	if err := json.Unmarshal(next(t, got).data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if _, ok := frame["left"]; ok {
		t.Error("frame carries an untracked left hand")
	}
	if len(frame["right"]) != domain.FrameSize {
		t.Errorf("right has %d values, want %d", len(frame["right"]), domain.FrameSize)
	}

	stats := tr.Stats()
	if stats.Sent != 1 || stats.Dropped != 1 {
		t.Errorf("stats = %+v, want 1 sent 1 dropped", stats)
	}
}

func TestTransportCBOR(t *testing.T) {
	url, got := robotEndpoint(t)
	codec, err := NewCodec("cbor")
	if err != nil {
		t.Fatal(err)
	}
	tr := New(Options{RobotID: "box", Codec: codec})
	defer tr.Close()

	tr.Connect(context.Background(), url)
	waitOpen(t, tr)
	if err := tr.Send(domain.TelemetryMessage{Left: frameWith(0.5)}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	first := next(t, got)
	if first.typ != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", first.typ)
	}
	var role domain.RoleAnnouncement
	if err := cbor.Unmarshal(first.data, &role); err != nil || role.Role != "teleop" {
		t.Fatalf("role = %+v, err %v", role, err)
	}

	var msg domain.TelemetryMessage
	if err := cbor.Unmarshal(next(t, got).data, &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if msg.Left == nil || msg.Left[399] != 0.5 || msg.Right != nil {
		t.Errorf("decoded frame mismatch: left=%v right=%v", msg.Left != nil, msg.Right != nil)
	}
}

func TestTransportCloseIdempotent(t *testing.T) {
	url, _ := robotEndpoint(t)
	tr := New(Options{RobotID: "box"})
	tr.Connect(context.Background(), url)
	waitOpen(t, tr)

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if tr.IsOpen() {
		t.Error("open after Close")
	}
	if err := tr.Send(domain.TelemetryMessage{}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send after Close = %v, want ErrNotOpen", err)
	}
	tr.Connect(context.Background(), url)
	if tr.IsOpen() {
		t.Error("closed transport reconnected")
	}
}

func TestNewCodecRejectsUnknown(t *testing.T) {
	if _, err := NewCodec("msgpack"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSendDropsWhenNotOpen(t *testing.T) {
	tr := New(Options{RobotID: "box"})
	msg := domain.TelemetryMessage{Left: &domain.JointFrame{}}

	if err := tr.Send(msg); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Send before Connect = %v, want ErrNotOpen", err)
	}
	url, _ := robotEndpoint(t)
	tr.Connect(context.Background(), url)
	waitOpen(t, tr)
	_ = tr.Close()
	if err := tr.Send(msg); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Send after Close = %v, want ErrNotOpen", err)
	}
	if st := tr.Stats(); st.Dropped != 2 || st.Sent != 0 {
		t.Errorf("stats = %+v", st)
	}
}
