package handler

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/middleware"
	"storecare/internal/usecase"
	"storecare/pkg/errors"
	"storecare/pkg/response"
	"storecare/pkg/utils"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
	}
}

type startConversationRequest struct {
	StoreRef string `json:"store_ref" validate:"max=128"`
}

// StartConversation returns the caller's waiting conversation, creating
// one (201) when there is none (200 otherwise).
func (h *ConversationHandler) StartConversation(c echo.Context) error {
	var req startConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	conversation, created, err := h.conversationUseCase.StartConversation(
		c.Request().Context(),
		middleware.CurrentIdentity(c),
		usecase.StartConversationInput{StoreRef: req.StoreRef},
	)
	if err != nil {
		return response.Error(c, err)
	}

	if created {
		return response.Created(c, conversation)
	}
	return response.Success(c, conversation)
}

func (h *ConversationHandler) ListMyConversations(c echo.Context) error {
	identity := middleware.CurrentIdentity(c)
	pagination := utils.GetPaginationParams(c)

	conversations, total, err := h.conversationUseCase.ListUserConversations(
		c.Request().Context(),
		identity.ID,
		pagination.PageSize,
		pagination.Offset,
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, conversations, total, pagination.Page, pagination.PageSize)
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	conversation, err := h.conversationUseCase.GetConversation(c.Request().Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversation)
}

func (h *ConversationHandler) GetMessages(c echo.Context) error {
	messages, err := h.conversationUseCase.GetMessages(c.Request().Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

// Admin handlers

func (h *ConversationHandler) ListQueue(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	conversations, total, err := h.conversationUseCase.ListQueue(
		c.Request().Context(),
		middleware.CurrentIdentity(c),
		pagination.PageSize,
		pagination.Offset,
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, conversations, total, pagination.Page, pagination.PageSize)
}

func (h *ConversationHandler) ListAssigned(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	conversations, total, err := h.conversationUseCase.ListAssigned(
		c.Request().Context(),
		middleware.CurrentIdentity(c),
		pagination.PageSize,
		pagination.Offset,
	)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, conversations, total, pagination.Page, pagination.PageSize)
}
