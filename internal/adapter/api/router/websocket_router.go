package router

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/handler"
)

// SetupWebSocketRouter mounts the chat screen socket. Authentication
// happens inside the session, from the handshake token.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}
