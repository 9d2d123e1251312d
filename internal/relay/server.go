package relay

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewRouter serves /signal, /telemetry and /status.
func NewRouter(ctx context.Context, hub *Hub, mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	serve := func(ch Channel) gin.HandlerFunc {
		return func(c *gin.Context) {
			raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
			if err != nil {
				hub.logger.Error().Err(err).Str("channel", string(ch)).Msg("upgrade failed")
				return
			}
			_ = hub.Serve(ctx, ch, raw, c.Request.URL.Query())
		}
	}
	r.GET("/signal", serve(ChannelSignal))
	r.GET("/telemetry", serve(ChannelTelemetry))
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Stats())
	})
	return r
}
