package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/middleware"
	"storecare/internal/domain/entity"
	"storecare/internal/usecase"
	"storecare/pkg/errors"
	"storecare/pkg/response"
	"storecare/pkg/utils"
)

type ServiceRequestHandler struct {
	serviceRequestUseCase *usecase.ServiceRequestUseCase
}

func NewServiceRequestHandler(serviceRequestUseCase *usecase.ServiceRequestUseCase) *ServiceRequestHandler {
	return &ServiceRequestHandler{
		serviceRequestUseCase: serviceRequestUseCase,
	}
}

type itemCountRequest struct {
	Item  string `json:"item" validate:"required"`
	Count int    `json:"count" validate:"min=0,max=99"`
}

type createServiceRequestRequest struct {
	Type          string             `json:"type" validate:"required,oneof=valve_replacement alarm_replacement pipe_removal"`
	StoreRef      string             `json:"store_ref" validate:"required,max=128"`
	Items         []itemCountRequest `json:"items" validate:"max=10,dive"`
	AlarmType     string             `json:"alarm_type" validate:"omitempty,oneof=lpg lng other"`
	Notes         string             `json:"notes" validate:"max=2000"`
	PreferredDate *time.Time         `json:"preferred_date,omitempty"`
}

func (h *ServiceRequestHandler) CreateServiceRequest(c echo.Context) error {
	var req createServiceRequestRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	identity := middleware.CurrentIdentity(c)

	items := make([]usecase.ItemCount, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, usecase.ItemCount{Item: item.Item, Count: item.Count})
	}

	serviceRequest, err := h.serviceRequestUseCase.Submit(c.Request().Context(), identity.ID, usecase.SubmitServiceRequestInput{
		Type:          entity.ServiceType(req.Type),
		StoreRef:      req.StoreRef,
		Items:         items,
		AlarmType:     req.AlarmType,
		Notes:         req.Notes,
		PreferredDate: req.PreferredDate,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, serviceRequest)
}

func (h *ServiceRequestHandler) ListMyServiceRequests(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)
	pagination := utils.GetPaginationParams(c)

	requests, total, err := h.serviceRequestUseCase.ListMine(c.Request().Context(), identity.ID, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, requests, total, pagination.Page, pagination.PageSize)
}

func (h *ServiceRequestHandler) GetServiceRequest(c echo.Context) error {
	serviceRequest, err := h.serviceRequestUseCase.Get(c.Request().Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, serviceRequest)
}

// Admin handlers

func (h *ServiceRequestHandler) ListAllServiceRequests(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)
	status := entity.ServiceRequestStatus(c.QueryParam("status"))

	requests, total, err := h.serviceRequestUseCase.ListAll(c.Request().Context(), status, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, requests, total, pagination.Page, pagination.PageSize)
}

type updateServiceRequestStatusRequest struct {
	Status    string `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
	StaffNote string `json:"staff_note" validate:"max=2000"`
}

func (h *ServiceRequestHandler) UpdateServiceRequestStatus(c echo.Context) error {
	var req updateServiceRequestStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	serviceRequest, err := h.serviceRequestUseCase.UpdateStatus(c.Request().Context(), c.Param("id"), usecase.UpdateServiceRequestStatusInput{
		Status:    entity.ServiceRequestStatus(req.Status),
		StaffNote: req.StaffNote,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, serviceRequest)
}
