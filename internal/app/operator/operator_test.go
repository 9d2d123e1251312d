package operator

import (
	"context"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Teleop/internal/adapters/handsource"
	"github.com/dkeye/Teleop/internal/adapters/render"
	"github.com/dkeye/Teleop/internal/adapters/rtc"
	"github.com/dkeye/Teleop/internal/adapters/ws"
	"github.com/dkeye/Teleop/internal/config"
	"github.com/dkeye/Teleop/internal/domain"
	"github.com/dkeye/Teleop/internal/relay"
	"github.com/dkeye/Teleop/internal/robot"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

func testConfig(base string) *config.Config {
	return &config.Config{
		Signaling: config.SignalingConfig{
			URL:          base + "/signal?robot_id=box",
			WriteTimeout: 5 * time.Second,
		},
		Telemetry: config.TelemetryConfig{
			URL:      base + "/telemetry",
			RobotID:  "box",
			Role:     domain.RoleTeleop,
			RateHz:   60,
			Encoding: "json",
		},
		Tick: config.TickConfig{RateHz: 90},
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownEncodingRejected(t *testing.T) {
	cfg := testConfig("ws://unused")
	cfg.Telemetry.Encoding = "xml"
	if _, err := New(cfg, webrtc.NewAPI(), webrtc.Configuration{}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestEndToEndStereoCall(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real peer connections")
	}
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub := relay.NewHub(0, time.Second, ws.Options{})
	srv := httptest.NewServer(relay.NewRouter(ctx, hub, "test"))
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	newAPI := func() *webrtc.API {
		api, err := rtc.NewAPI(rtc.APIOptions{IncludeLoopback: true})
		if err != nil {
			t.Fatal(err)
		}
		return api
	}

	// The robot trickles every candidate before its offer, so the operator
	// must buffer them until the remote description is set.
	bot := robot.New(robot.Options{
		SignalURL:             base + "/signal",
		TelemetryURL:          base + "/telemetry",
		RobotID:               "box",
		MaxRetries:            1,
		API:                   newAPI(),
		CandidatesBeforeOffer: true,
	})
	botDone := make(chan error, 1)
	go func() { botDone <- bot.Run(ctx) }()
	waitFor(t, 5*time.Second, "robot registration", func() bool {
		return hub.Connected(relay.ChannelSignal, "box", domain.RoleRobot) &&
			hub.Connected(relay.ChannelTelemetry, "box", domain.RoleRobot)
	})

	slotA, slotB := &render.CountingSink{}, &render.CountingSink{}
	op, err := New(testConfig(base), newAPI(), webrtc.Configuration{}, render.NewSlots(slotA, slotB))
	if err != nil {
		t.Fatal(err)
	}
	opDone := make(chan error, 1)
	go func() { opDone <- op.Run(ctx) }()

	if err := op.Controller.SetDirective(true); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 20*time.Second, "active session with both slots fed", func() bool {
		st := op.Controller.Status()
		return st.Session == "active" && st.SlotA != "" && st.SlotB != "" &&
			slotA.Packets() > 0 && slotB.Packets() > 0
	})
	st := op.Controller.Status()
	got := []string{st.SlotA, st.SlotB}
	sort.Strings(got)
	if got[0] != robot.CameraIDs[0] || got[1] != robot.CameraIDs[1] {
		t.Errorf("slots = %v, want both cameras", got)
	}
	if bs := bot.Stats(); bs.Offers != 1 || bs.Answers != 1 {
		t.Errorf("robot stats = %+v", bs)
	}
	if st.Hellos != 1 || st.SessionsBuilt != 1 {
		t.Errorf("status = %+v", st)
	}

	if err := op.Hands.Apply(handsource.Update{Hand: "left"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 5*time.Second, "telemetry at the robot", func() bool {
		return bot.Stats().TelemetryFrames > 0
	})

	cancel()
	for _, done := range []chan error{opDone, botDone} {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("component did not stop")
		}
	}
}
