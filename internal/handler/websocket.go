package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"walletd/internal/service"
	"walletd/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS middleware.
		return true
	},
}

// WebSocketHandler streams session_changed events. Each connection is one
// consumer: it subscribes on connect and unsubscribes when the socket closes.
func WebSocketHandler(m *service.SessionManager, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			logger.Warn("ws upgrade error", zap.Error(err))
			return err
		}

		client := ws.NewClient(conn, logger)
		client.Attach(m)
		client.Send(m.State())

		go client.WritePump()
		go client.ReadPump()

		return nil
	}
}
