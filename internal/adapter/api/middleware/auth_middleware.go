package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"storecare/internal/domain/entity"
	"storecare/internal/infrastructure/firebase"
	"storecare/pkg/logger"
)

const (
	uidKey      = "uid"
	identityKey = "identity"
)

type AuthMiddleware struct {
	verifier firebase.TokenVerifier
}

func NewAuthMiddleware(verifier firebase.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken, ok := BearerToken(c.Request().Header.Get("Authorization"))
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is required")
		}

		token, err := m.verifier.VerifyIDToken(c.Request().Context(), idToken)
		if err != nil {
			logger.Debug("Auth: rejected token: %v", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		identity := firebase.IdentityFromToken(token)
		c.Set(uidKey, identity.ID)
		c.Set(identityKey, identity)

		return next(c)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CurrentIdentity returns the identity Authenticate stored on c.
func CurrentIdentity(c echo.Context) *entity.Identity {
	identity, _ := c.Get(identityKey).(*entity.Identity)
	return identity
}

// SetIdentity stores identity on c the way Authenticate does.
func SetIdentity(c echo.Context, identity *entity.Identity) {
	c.Set(uidKey, identity.ID)
	c.Set(identityKey, identity)
}
