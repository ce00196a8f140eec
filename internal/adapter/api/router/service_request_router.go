package router

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/handler"
	"storecare/internal/adapter/api/middleware"
)

func SetupServiceRequestRouter(e *echo.Echo, serviceRequestHandler *handler.ServiceRequestHandler, authMiddleware *middleware.AuthMiddleware) {
	requests := e.Group("/v1/service-requests")
	requests.Use(authMiddleware.Authenticate)

	requests.POST("", serviceRequestHandler.CreateServiceRequest)
	requests.GET("", serviceRequestHandler.ListMyServiceRequests)
	requests.GET("/:id", serviceRequestHandler.GetServiceRequest)

	adminRequests := e.Group("/v1/admin/service-requests")
	adminRequests.Use(authMiddleware.Authenticate)
	adminRequests.Use(middleware.AdminOnly)

	adminRequests.GET("", serviceRequestHandler.ListAllServiceRequests)
	adminRequests.PUT("/:id/status", serviceRequestHandler.UpdateServiceRequestStatus)
}
