package router

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/handler"
	"storecare/internal/adapter/api/middleware"
)

func SetupInquiryRouter(e *echo.Echo, inquiryHandler *handler.InquiryHandler, authMiddleware *middleware.AuthMiddleware) {
	inquiries := e.Group("/v1/inquiries")
	inquiries.Use(authMiddleware.Authenticate)

	inquiries.POST("", inquiryHandler.CreateInquiry)
	inquiries.GET("", inquiryHandler.ListMyInquiries)
	inquiries.GET("/:id", inquiryHandler.GetInquiry)
	inquiries.PUT("/:id/close", inquiryHandler.CloseInquiry)

	adminInquiries := e.Group("/v1/admin/inquiries")
	adminInquiries.Use(authMiddleware.Authenticate)
	adminInquiries.Use(middleware.AdminOnly)

	adminInquiries.GET("", inquiryHandler.ListInquiriesForTriage)
	adminInquiries.GET("/:id", inquiryHandler.GetInquiry)
	adminInquiries.POST("/:id/responses", inquiryHandler.RespondToInquiry)
	adminInquiries.PUT("/:id/status", inquiryHandler.UpdateInquiryStatus)
}
