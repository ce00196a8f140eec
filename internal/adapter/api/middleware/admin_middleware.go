package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminOnly lets through staff identities only. It must run after
// Authenticate.
func AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity := CurrentIdentity(c)
		if identity == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
		}

		if !identity.IsStaff() {
			return echo.NewHTTPError(http.StatusForbidden, "Staff privileges required")
		}

		return next(c)
	}
}
