package handler

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/middleware"
	"storecare/internal/domain/entity"
	"storecare/internal/usecase"
	"storecare/pkg/errors"
	"storecare/pkg/response"
	"storecare/pkg/utils"
)

type InquiryHandler struct {
	inquiryUseCase *usecase.InquiryUseCase
}

func NewInquiryHandler(inquiryUseCase *usecase.InquiryUseCase) *InquiryHandler {
	return &InquiryHandler{
		inquiryUseCase: inquiryUseCase,
	}
}

type createInquiryRequest struct {
	StoreRef string `json:"store_ref" validate:"max=100"`
	Category string `json:"category" validate:"omitempty,oneof=general technical_support service other"`
	Priority string `json:"priority" validate:"omitempty,oneof=low normal high"`
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"required,max=5000"`
}

func (h *InquiryHandler) CreateInquiry(c echo.Context) error {
	var req createInquiryRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	identity := middleware.CurrentIdentity(c)

	inquiry, err := h.inquiryUseCase.Submit(c.Request().Context(), identity.ID, usecase.SubmitInquiryInput{
		StoreRef: req.StoreRef,
		Category: entity.InquiryCategory(req.Category),
		Priority: entity.InquiryPriority(req.Priority),
		Title:    req.Title,
		Body:     req.Body,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, inquiry)
}

func (h *InquiryHandler) ListMyInquiries(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)
	pagination := utils.GetPaginationParams(c)

	inquiries, total, err := h.inquiryUseCase.ListMine(c.Request().Context(), identity.ID, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, inquiries, total, pagination.Page, pagination.PageSize)
}

func (h *InquiryHandler) GetInquiry(c echo.Context) error {
	inquiry, err := h.inquiryUseCase.Get(c.Request().Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, inquiry)
}

func (h *InquiryHandler) CloseInquiry(c echo.Context) error {
	inquiry, err := h.inquiryUseCase.Close(c.Request().Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, inquiry)
}

// Admin handlers

func (h *InquiryHandler) ListInquiriesForTriage(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)
	status := entity.InquiryStatus(c.QueryParam("status"))

	inquiries, total, err := h.inquiryUseCase.ListForTriage(c.Request().Context(), status, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, inquiries, total, pagination.Page, pagination.PageSize)
}

type respondInquiryRequest struct {
	Content        string `json:"content" validate:"required,max=1000"`
	IsInternalNote bool   `json:"is_internal_note"`
}

func (h *InquiryHandler) RespondToInquiry(c echo.Context) error {
	var req respondInquiryRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	reply, err := h.inquiryUseCase.Respond(c.Request().Context(), middleware.CurrentIdentity(c), c.Param("id"), usecase.RespondInquiryInput{
		Content:      req.Content,
		InternalNote: req.IsInternalNote,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, reply)
}

type updateInquiryStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=received in_progress done on_hold"`
}

func (h *InquiryHandler) UpdateInquiryStatus(c echo.Context) error {
	var req updateInquiryStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	inquiry, err := h.inquiryUseCase.UpdateStatus(c.Request().Context(), middleware.CurrentIdentity(c), c.Param("id"), entity.InquiryStatus(req.Status))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, inquiry)
}
