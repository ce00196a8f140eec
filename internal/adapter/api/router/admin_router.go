package router

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/handler"
	"storecare/internal/adapter/api/middleware"
)

func SetupAdminRouter(e *echo.Echo, adminHandler *handler.AdminHandler, authMiddleware *middleware.AuthMiddleware) {
	admin := e.Group("/v1/admin")
	admin.Use(authMiddleware.Authenticate)
	admin.Use(middleware.AdminOnly)

	admin.PUT("/users/:uid/role", adminHandler.SetUserRole)
}
