package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
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
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func TestConnEcho(t *testing.T) {
	srv := echoServer(t)
	c := New(dial(t, srv), Options{}, zerolog.Nop())

	got := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background(), func(b []byte) { got <- string(b) })
	}()

	if err := c.TrySend([]byte("ping")); err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	select {
	case s := <-got:
		if s != "ping" {
			t.Fatalf("echo = %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}

	c.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Run returned %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	if err := c.TrySend([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("TrySend after Close = %v, want ErrClosed", err)
	}
	c.Close()
}

func TestConnBackpressure(t *testing.T) {
	srv := echoServer(t)
	c := New(dial(t, srv), Options{SendBuffer: 1}, zerolog.Nop())
	defer c.Close()

	if err := c.TrySend([]byte("a")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := c.TrySend([]byte("b")); !errors.Is(err, ErrBackpressure) {
		t.Fatalf("second send = %v, want ErrBackpressure", err)
	}
}

func TestConnContextCancel(t *testing.T) {
	srv := echoServer(t)
	c := New(dial(t, srv), Options{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func([]byte) {}) }()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored context cancellation")
	}
	if !c.IsClosed() {
		t.Error("connection not closed after cancel")
	}
}

func TestConnPreservesMessageType(t *testing.T) {
	srv := echoServer(t)
	c := New(dial(t, srv), Options{}, zerolog.Nop())
	defer c.Close()

	type msg struct {
		mt   int
		data string
	}
	got := make(chan msg, 2)
	go func() {
		_ = c.RunMessages(context.Background(), func(mt int, b []byte) { got <- msg{mt, string(b)} })
	}()

	_ = c.TrySend([]byte("text"))
	_ = c.TrySendMessage(websocket.BinaryMessage, []byte{0xa1})
	want := []msg{{websocket.TextMessage, "text"}, {websocket.BinaryMessage, "\xa1"}}
	for _, w := range want {
		select {
		case m := <-got:
			if m != w {
				t.Fatalf("got %+v, want %+v", m, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no echo")
		}
	}
}
