package middleware

import (
	"github.com/labstack/echo/v4"

	"storecare/internal/infrastructure/ratelimit"
	"storecare/pkg/errors"
	"storecare/pkg/logger"
	"storecare/pkg/response"
)

// RateLimit applies the per-user bucket for action. Unauthenticated
// requests are keyed by client IP.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if identity := CurrentIdentity(c); identity != nil {
				key = identity.ID
			}

			if allowed, wait := limiter.Allow(key, action); !allowed {
				logger.Info("RATE LIMIT: %s blocked on %s (retry in %v)", key, action, wait)
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", wait))
			}

			return next(c)
		}
	}
}
