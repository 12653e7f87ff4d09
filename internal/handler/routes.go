package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	customMiddleware "walletd/internal/middleware"
	"walletd/internal/service"
)

// RegisterRoutes mounts the session API on e.
func RegisterRoutes(e *echo.Echo, m *service.SessionManager, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "walletd is running",
			"ready":   m.IsReady(),
		})
	})
	e.GET("/ws", WebSocketHandler(m, logger))

	api := e.Group("/api")
	api.GET("/session", GetSession(m))
	api.POST("/session/connect", ConnectWallet(m, logger))
	api.POST("/session/sign", SignMessage(m, logger), customMiddleware.RequireReady(m))
}
