package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"storecare/internal/adapter/api/middleware"
	"storecare/internal/domain/entity"
	"storecare/pkg/errors"
	"storecare/pkg/logger"
	"storecare/pkg/response"
)

// RoleSetter is satisfied by firebase.FirebaseAuthClient.
type RoleSetter interface {
	SetRole(ctx context.Context, uid string, role entity.Role) error
}

type AdminHandler struct {
	roles RoleSetter
}

func NewAdminHandler(roles RoleSetter) *AdminHandler {
	return &AdminHandler{
		roles: roles,
	}
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer staff"`
}

func (h *AdminHandler) SetUserRole(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return response.Error(c, errors.BadRequest("User ID is required", nil))
	}

	var req setRoleRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.roles.SetRole(c.Request().Context(), uid, entity.Role(req.Role)); err != nil {
		logger.Error("Admin: failed to set role %s for user %s: %v", req.Role, uid, err)
		return response.Error(c, errors.Internal("Failed to update user role", err))
	}

	logger.Info("Admin: %s set role of %s to %s", middleware.CurrentIdentity(c).ID, uid, req.Role)
	return response.Success(c, map[string]string{
		"uid":  uid,
		"role": req.Role,
	})
}
