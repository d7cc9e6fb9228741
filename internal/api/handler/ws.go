package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bloodlink/backend/internal/chathub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the frontend's own origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection. The client then authenticates
// in-band with an authenticate event carrying the same bearer token as REST.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Hub, h.Tokens, h.Chat, chathub.SessionOptions{
		RestrictJoin: h.RestrictJoin,
		Log:          h.Log.Named("session"),
	})
	client.Run()
}
