package ws

import (
	"time"

	"walletd/internal/model"
)

const EventSessionChanged = "session_changed"

// WsEvent is the envelope written to websocket consumers.
type WsEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// SessionChangedData is the payload of a session_changed event.
type SessionChangedData struct {
	model.SessionState
	ShortAddress string `json:"shortAddress,omitempty"`
}
