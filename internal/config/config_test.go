package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing-env")
	cfg, err := Load("test", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telemetry.Role != "teleop" {
		t.Errorf("role = %q, want teleop", cfg.Telemetry.Role)
	}
	if cfg.Telemetry.RateHz != 60 {
		t.Errorf("rate_hz = %v, want 60", cfg.Telemetry.RateHz)
	}
	if cfg.Signaling.WriteTimeout != 5*time.Second {
		t.Errorf("write_timeout = %v, want 5s", cfg.Signaling.WriteTimeout)
	}
	if len(cfg.WebRTC.ICEServers) != 1 {
		t.Errorf("ice_servers = %v, want one default", cfg.WebRTC.ICEServers)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "teleop.yaml")
	body := []byte(`
port: 9000
telemetry:
  robot_id: arm-7
  encoding: cbor
signaling:
  url: ws://relay.example/signal
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TELEOP_TELEMETRY_URL", "ws://env.example/telemetry")

	cfg, err := Load("test", []string{"--config", path, "--port", "9100"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("port = %d, want flag value 9100", cfg.Port)
	}
	if cfg.Telemetry.RobotID != "arm-7" || cfg.Telemetry.Encoding != "cbor" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.URL != "ws://env.example/telemetry" {
		t.Errorf("telemetry.url = %q, want env override", cfg.Telemetry.URL)
	}
	if cfg.Signaling.URL != "ws://relay.example/signal" {
		t.Errorf("signaling.url = %q", cfg.Signaling.URL)
	}
}

func TestValidateRejectsEncoding(t *testing.T) {
	cfg := Config{Telemetry: TelemetryConfig{Encoding: "xml", RateHz: 60, RobotID: "box"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestTelemetryIntervalRoundsUp(t *testing.T) {
	cfg := Config{Telemetry: TelemetryConfig{RateHz: 60}}
	got := cfg.TelemetryInterval()
	if got*60 < time.Second {
		t.Fatalf("interval %v admits more than 60 frames per second", got)
	}
	if got != 16666667*time.Nanosecond {
		t.Errorf("interval = %v, want 16.666667ms", got)
	}
}

func TestApplyLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	(&Config{LogLevel: "debug"}).ApplyLogLevel()
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %v", zerolog.GlobalLevel())
	}
	(&Config{LogLevel: "loud"}).ApplyLogLevel()
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("unknown level changed the level to %v", zerolog.GlobalLevel())
	}
}
