package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type SignalingConfig struct {
	URL          string        `mapstructure:"url"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// QueueLocalCandidates keeps local ICE candidates gathered while the
	// signaling socket is down and flushes them on open.
	QueueLocalCandidates bool `mapstructure:"queue_local_candidates"`
}

type TelemetryConfig struct {
	URL      string  `mapstructure:"url"`
	RobotID  string  `mapstructure:"robot_id"`
	Role     string  `mapstructure:"role"`
	RateHz   float64 `mapstructure:"rate_hz"`
	Encoding string  `mapstructure:"encoding"`
}

type WebRTCConfig struct {
	ICEServers      []string `mapstructure:"ice_servers"`
	RTCConfigURL    string   `mapstructure:"rtc_config_url"`
	IncludeLoopback bool     `mapstructure:"include_loopback"`
}

type RenderConfig struct {
	SlotAAddr string `mapstructure:"slot_a_addr"`
	SlotBAddr string `mapstructure:"slot_b_addr"`
}

type TickConfig struct {
	RateHz float64 `mapstructure:"rate_hz"`
}

type HandsConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type RelayConfig struct {
	Port         int           `mapstructure:"port"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

type RobotConfig struct {
	SignalingURL string `mapstructure:"signaling_url"`
	TelemetryURL string `mapstructure:"telemetry_url"`
	FPS          int    `mapstructure:"fps"`
	MaxRetries   uint64 `mapstructure:"max_retries"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	Secret   string `mapstructure:"secret"`
	LogLevel string `mapstructure:"log_level"`

	Signaling SignalingConfig `mapstructure:"signaling"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	WebRTC    WebRTCConfig    `mapstructure:"webrtc"`
	Render    RenderConfig    `mapstructure:"render"`
	Tick      TickConfig      `mapstructure:"tick"`
	Hands     HandsConfig     `mapstructure:"hands"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Robot     RobotConfig     `mapstructure:"robot"`
}

// TelemetryInterval is the minimum spacing between accepted frames, rounded up
// to the next nanosecond.
func (c *Config) TelemetryInterval() time.Duration {
	return intervalFor(c.Telemetry.RateHz)
}

// TickInterval is the period of the sampling clock.
func (c *Config) TickInterval() time.Duration {
	return intervalFor(c.Tick.RateHz)
}

func intervalFor(hz float64) time.Duration {
	if hz <= 0 {
		hz = 60
	}
	ns := float64(time.Second) / hz
	d := time.Duration(ns)
	if float64(d) < ns {
		d++
	}
	return d
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "teleop-dev-secret")
	v.SetDefault("log_level", "info")

	v.SetDefault("signaling.url", "ws://localhost:8765/signal?robot_id=box")
	v.SetDefault("signaling.read_limit", 1<<20)
	v.SetDefault("signaling.ping_period", "20s")
	v.SetDefault("signaling.write_timeout", "5s")
	v.SetDefault("signaling.queue_local_candidates", false)

	v.SetDefault("telemetry.url", "ws://localhost:8765/telemetry")
	v.SetDefault("telemetry.robot_id", "box")
	v.SetDefault("telemetry.role", "teleop")
	v.SetDefault("telemetry.rate_hz", 60)
	v.SetDefault("telemetry.encoding", "json")

	v.SetDefault("webrtc.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("webrtc.rtc_config_url", "")
	v.SetDefault("webrtc.include_loopback", false)

	v.SetDefault("render.slot_a_addr", "127.0.0.1:5004")
	v.SetDefault("render.slot_b_addr", "127.0.0.1:5006")

	v.SetDefault("tick.rate_hz", 90)
	v.SetDefault("hands.stale_after", "250ms")

	v.SetDefault("relay.port", 8765)
	v.SetDefault("relay.rate_limit", 400)
	v.SetDefault("relay.rate_interval", "1s")

	v.SetDefault("robot.signaling_url", "ws://localhost:8765/signal")
	v.SetDefault("robot.telemetry_url", "ws://localhost:8765/telemetry")
	v.SetDefault("robot.fps", 30)
	v.SetDefault("robot.max_retries", 5)
}

// Flags returns the command-line flags understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "config file path (overrides CONFIG_ENV)")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fs.String("signaling-url", "", "signaling relay WebSocket URL")
	fs.String("telemetry-url", "", "telemetry relay WebSocket URL")
	fs.String("robot-id", "", "robot identifier announced on the telemetry channel")
	return fs
}

var flagKeys = map[string]string{
	"port":          "port",
	"log-level":     "log_level",
	"signaling-url": "signaling.url",
	"telemetry-url": "telemetry.url",
	"robot-id":      "telemetry.robot_id",
}

// Load reads config/config.<CONFIG_ENV>.yaml, then TELEOP_* env vars, then
// flags parsed from args. Unset flags do not override.
func Load(name string, args []string) (*Config, error) {
	fs := Flags(name)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("TELEOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileName, _ := fs.GetString("config")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	for flagName, key := range flagKeys {
		f := fs.Lookup(flagName)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("signaling", cfg.Signaling.URL).
		Str("telemetry", cfg.Telemetry.URL).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Telemetry.Encoding {
	case "json", "cbor":
	default:
		return fmt.Errorf("telemetry.encoding: unsupported %q", c.Telemetry.Encoding)
	}
	if c.Telemetry.RateHz <= 0 {
		return fmt.Errorf("telemetry.rate_hz must be positive, got %v", c.Telemetry.RateHz)
	}
	if c.Telemetry.RobotID == "" {
		return fmt.Errorf("telemetry.robot_id must be set")
	}
	return nil
}
