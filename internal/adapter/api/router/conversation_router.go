package router

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/handler"
	"storecare/internal/adapter/api/middleware"
	"storecare/internal/infrastructure/ratelimit"
)

func SetupConversationRouter(e *echo.Echo, conversationHandler *handler.ConversationHandler, authMiddleware *middleware.AuthMiddleware, rateLimiter *ratelimit.RateLimiter) {
	conversations := e.Group("/v1/conversations")
	conversations.Use(authMiddleware.Authenticate)

	conversations.POST("", conversationHandler.StartConversation, middleware.RateLimit(rateLimiter, ratelimit.ActionStartConversation))
	conversations.GET("", conversationHandler.ListMyConversations)
	conversations.GET("/:id", conversationHandler.GetConversation)
	conversations.GET("/:id/messages", conversationHandler.GetMessages)

	adminConversations := e.Group("/v1/admin/conversations")
	adminConversations.Use(authMiddleware.Authenticate)
	adminConversations.Use(middleware.AdminOnly)

	adminConversations.GET("/queue", conversationHandler.ListQueue)
	adminConversations.GET("/assigned", conversationHandler.ListAssigned)
}
