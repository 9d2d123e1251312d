package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// ConfigFromURLs builds a configuration with one ICE server per URL.
func ConfigFromURLs(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		return DefaultWebRTCConfig()
	}
	servers := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	return webrtc.Configuration{ICEServers: servers}
}

type configWire struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// FetchRTCConfig loads the ICE server list published at url.
func FetchRTCConfig(ctx context.Context, client *http.Client, url string) (webrtc.Configuration, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return webrtc.Configuration{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return webrtc.Configuration{}, fmt.Errorf("rtc-config request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return webrtc.Configuration{}, fmt.Errorf("rtc-config bad status: %s", resp.Status)
	}
	var wire configWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return webrtc.Configuration{}, fmt.Errorf("decode rtc-config: %w", err)
	}
	return webrtc.Configuration{ICEServers: wire.ICEServers}, nil
}

// ResolveConfig prefers the remote list and falls back to the static URLs.
func ResolveConfig(ctx context.Context, fetchURL string, static []string) webrtc.Configuration {
	if fetchURL == "" {
		return ConfigFromURLs(static)
	}
	cfg, err := FetchRTCConfig(ctx, nil, fetchURL)
	if err != nil {
		log.Warn().Err(err).Str("module", "webrtc").Str("url", fetchURL).Msg("rtc-config fetch failed, using static ICE servers")
		return ConfigFromURLs(static)
	}
	return cfg
}

type APIOptions struct {
	IncludeLoopback bool
	LoggerFactory   logging.LoggerFactory
}

// NewAPI builds a pion API with the default codecs and interceptors.
func NewAPI(opts APIOptions) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	s := webrtc.SettingEngine{}
	if opts.LoggerFactory != nil {
		s.LoggerFactory = opts.LoggerFactory
	}
	if opts.IncludeLoopback {
		s.SetIncludeLoopbackCandidate(true)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(s),
	), nil
}
