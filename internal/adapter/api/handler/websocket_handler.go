package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/middleware"
	"storecare/internal/domain/repository"
	"storecare/internal/infrastructure/firebase"
	"storecare/internal/infrastructure/ratelimit"
	ws "storecare/internal/infrastructure/websocket"
	"storecare/internal/usecase"
	"storecare/pkg/logger"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler opens one chat screen session per socket.
type WebSocketHandler struct {
	wsManager   *ws.Manager
	verifier    firebase.TokenVerifier
	store       repository.ConversationStore
	rateLimiter *ratelimit.RateLimiter
	options     []usecase.SyncOption
}

func NewWebSocketHandler(
	wsManager *ws.Manager,
	verifier firebase.TokenVerifier,
	store repository.ConversationStore,
	rateLimiter *ratelimit.RateLimiter,
	options ...usecase.SyncOption,
) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:   wsManager,
		verifier:    verifier,
		store:       store,
		rateLimiter: rateLimiter,
		options:     options,
	}
}

// HandleWebSocket upgrades the request and serves the session until the
// socket closes. The token comes from the "token" query parameter, since
// browsers cannot set headers on a websocket handshake, or from a Bearer
// header.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.Request().Header.Get("Authorization"))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("WebSocket: upgrade failed: %v", err)
		return nil
	}

	screen := usecase.NewConversationSyncController(
		firebase.NewTokenIdentityProvider(h.verifier, token),
		h.store,
		h.options...,
	)

	client := ws.NewClient(conn, screen, h.rateLimiter)
	logger.Debug("WebSocket: session %s opened from %s", client.ID, c.RealIP())
	client.Run(h.wsManager)
	logger.Debug("WebSocket: session %s closed", client.ID)

	return nil
}
