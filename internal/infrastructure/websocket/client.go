package websocket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"storecare/internal/infrastructure/ratelimit"
	"storecare/internal/usecase"
	"storecare/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 256
)

// Client is one mounted chat screen: a socket plus the controller that
// keeps its conversation in sync.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte
	screen *usecase.ConversationSyncController
	limits *ratelimit.RateLimiter
	ctx    context.Context
}

func NewClient(conn *websocket.Conn, screen *usecase.ConversationSyncController, limits *ratelimit.RateLimiter) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		screen: screen,
		limits: limits,
	}
}

// Run mounts the screen and serves the socket until it closes. It blocks
// for the life of the connection.
func (c *Client) Run(m *Manager) {
	parent := m.Context()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	c.ctx = ctx

	select {
	case m.Register <- c:
	case <-parent.Done():
		c.Conn.Close()
		return
	}

	forwarded := make(chan struct{})
	mounted := make(chan struct{})
	go c.WritePump()
	go func() {
		defer close(forwarded)
		c.forwardEvents()
	}()
	go func() {
		defer close(mounted)
		c.screen.Mount(ctx)
		if c.screen.Identity() == nil && ctx.Err() == nil {
			c.sendError("unauthenticated", "No authenticated identity; chat is unavailable")
		}
	}()

	c.ReadPump()

	// Unmount closes the screen's event stream once its subscription is
	// released; only then is Send safe to close.
	cancel()
	c.screen.Unmount()
	<-mounted
	<-forwarded
	m.Unregister <- c
}

// ReadPump reads frames from the socket until it errors or closes.
func (c *Client) ReadPump() {
	defer c.Conn.Close()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: session %s read error: %v", c.ID, err)
			}
			return
		}

		c.HandleClientMessage(message)
	}
}

// WritePump sends queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("WebSocket: session %s write error: %v", c.ID, err)
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

func (c *Client) forwardEvents() {
	for event := range c.screen.Events() {
		c.send(frameForEvent(event))
	}
}
