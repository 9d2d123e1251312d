// Package http exposes the operator control API: call directive, status and
// the hand tracking feed.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Teleop/internal/adapters/handsource"
	"github.com/dkeye/Teleop/internal/adapters/ws"
	"github.com/dkeye/Teleop/internal/app/lifecycle"
	"github.com/dkeye/Teleop/internal/app/sampler"
	"github.com/dkeye/Teleop/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CallController is the part of the lifecycle controller the API drives.
type CallController interface {
	SetDirective(active bool) error
	Status() lifecycle.Status
}

type SamplerStats interface {
	Stats() sampler.Stats
}

type Deps struct {
	Call    CallController
	Hands   *handsource.Store
	Sampler SamplerStats
}

type callRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type statusResponse struct {
	Call    lifecycle.Status `json:"call"`
	Sampler *sampler.Stats   `json:"sampler,omitempty"`
	Client  string           `json:"client"`
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("TeleopSessions", store))
	r.Use(ClientTokenMiddleware())

	logger := log.With().Str("module", "adapters.http").Logger()
	logger.Info().Msg("router setup")

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		resp := statusResponse{
			Call:   deps.Call.Status(),
			Client: c.GetString("client_token"),
		}
		if deps.Sampler != nil {
			st := deps.Sampler.Stats()
			resp.Sampler = &st
		}
		c.JSON(http.StatusOK, resp)
	})

	api.POST("/call", func(c *gin.Context) {
		var req callRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := deps.Call.SetDirective(*req.Active); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, lifecycle.ErrStopped) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		sess := sessions.Default(c)
		sess.Set("last_directive", *req.Active)
		if err := sess.Save(); err != nil {
			logger.Warn().Err(err).Msg("save session")
		}
		logger.Info().
			Str("client", c.GetString("client_token")).
			Bool("active", *req.Active).
			Msg("call directive")
		c.JSON(http.StatusAccepted, gin.H{"active": *req.Active})
	})

	api.GET("/ws/hands", func(c *gin.Context) {
		if deps.Hands == nil {
			c.Status(http.StatusNotFound)
			return
		}
		handleHands(ctx, c, deps.Hands, cfg)
	})

	return r
}

func handleHands(ctx context.Context, c *gin.Context, store *handsource.Store, cfg *config.Config) {
	client := c.GetString("client_token")
	logger := log.With().Str("module", "adapters.http").Str("client", client).Logger()

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("hands upgrade failed")
		return
	}
	conn := ws.New(raw, ws.Options{
		ReadLimit:  cfg.Signaling.ReadLimit,
		PingPeriod: cfg.Signaling.PingPeriod,
	}, logger)
	logger.Info().Msg("hand feed connected")

	bad := logger.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second})
	err = conn.RunMessages(ctx, func(mt int, data []byte) {
		u, err := handsource.Decode(data, mt == websocket.BinaryMessage)
		if err == nil {
			err = store.Apply(u)
		}
		if err != nil {
			bad.Warn().Err(err).Msg("hand update rejected")
		}
	})
	store.Clear()
	logger.Info().Err(err).Msg("hand feed disconnected")
}
