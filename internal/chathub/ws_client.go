package chathub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bloodlink/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	sendBuffer = 64
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	ConnID  string
	Conn    *websocket.Conn
	Hub     *ManagerService
	Send    chan models.Frame
	Session *Session

	log *zap.Logger
}

// NewWebSocketClient wraps conn, registers it with hub and attaches a fresh
// unauthenticated session.
func NewWebSocketClient(conn *websocket.Conn, hub *ManagerService, tokens TokenVerifier, messages MessageSender, opts SessionOptions) *WebSocketClient {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := &WebSocketClient{
		ConnID: uuid.NewString(),
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.Frame, sendBuffer),
	}
	c.log = log.With(zap.String("connection", c.ConnID))
	c.Session = NewSession(c, hub, tokens, messages, opts)
	hub.Register(c)
	return c
}

func (c *WebSocketClient) ID() string                           { return c.ConnID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Frame { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send; writePump then flushes and closes the connection. Only
// the hub calls it.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Session.Disconnect()
		c.Hub.Unregister(c)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("read failed", zap.Error(err))
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.log.Debug("undecodable frame", zap.Error(err))
			continue
		}

		if !c.Session.Handle(ctx, frame) {
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteJSON(frame); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
