package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ReadinessChecker is the part of the session manager the middleware needs.
type ReadinessChecker interface {
	IsReady() bool
}

// RequireReady rejects requests until the wallet session has initialized.
func RequireReady(s ReadinessChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !s.IsReady() {
				return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
					"success": false,
					"message": "Wallet session is not ready",
					"error": map[string]string{
						"code": "SESSION_NOT_READY",
					},
				})
			}
			return next(c)
		}
	}
}
