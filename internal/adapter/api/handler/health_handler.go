package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ConnectionTester is satisfied by firebase.FirebaseAuthClient.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// SessionCounter is satisfied by websocket.Manager.
type SessionCounter interface {
	ActiveSessions() int
}

type HealthHandler struct {
	firebaseAuth ConnectionTester
	sessions     SessionCounter
}

func NewHealthHandler(firebaseAuth ConnectionTester, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{
		firebaseAuth: firebaseAuth,
		sessions:     sessions,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":          "Server is running",
		"time":            time.Now().Format(time.RFC3339),
		"active_sessions": h.sessions.ActiveSessions(),
	})
}

func (h *HealthHandler) CheckFirebaseHealth(c echo.Context) error {
	err := h.firebaseAuth.TestConnection(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "Firebase Auth connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Firebase Auth connected successfully",
	})
}
