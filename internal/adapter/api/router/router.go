package router

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/handler"
	"storecare/internal/adapter/api/middleware"
	"storecare/internal/infrastructure/ratelimit"
)

// Handlers groups every handler the router mounts.
type Handlers struct {
	Conversation   *handler.ConversationHandler
	ServiceRequest *handler.ServiceRequestHandler
	Inquiry        *handler.InquiryHandler
	Admin          *handler.AdminHandler
	Health         *handler.HealthHandler
	WebSocket      *handler.WebSocketHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware, rateLimiter *ratelimit.RateLimiter) {
	SetupConversationRouter(e, h.Conversation, authMiddleware, rateLimiter)
	SetupServiceRequestRouter(e, h.ServiceRequest, authMiddleware)
	SetupInquiryRouter(e, h.Inquiry, authMiddleware)
	SetupAdminRouter(e, h.Admin, authMiddleware)
	SetupHealthRouter(e, h.Health)
	SetupWebSocketRouter(e, h.WebSocket)
}
