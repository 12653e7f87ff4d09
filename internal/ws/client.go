package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"walletd/internal/helper"
	"walletd/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Client is one websocket consumer of the session. It holds exactly one hub
// subscription for as long as the connection lives.
type Client struct {
	ID     uuid.UUID
	conn   *websocket.Conn
	logger *zap.Logger

	send chan WsEvent
	done chan struct{}

	mu          sync.Mutex
	closed      bool
	unsubscribe func()
}

// NewClient wraps conn. It does not start the pumps; that is the handler's job.
func NewClient(conn *websocket.Conn, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ID:     uuid.New(),
		conn:   conn,
		logger: logger,
		send:   make(chan WsEvent, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Source is anything session snapshots can be subscribed from.
type Source interface {
	SubscribeState(fn func(model.SessionState)) (unsubscribe func())
}

// Attach subscribes the client to src. A client whose buffer is full is
// considered stuck and gets disconnected.
func (c *Client) Attach(src Source) {
	unsubscribe := src.SubscribeState(func(state model.SessionState) {
		if !c.Send(state) {
			c.logger.Warn("ws: client too slow, dropping", zap.Stringer("client", c.ID))
			c.Close()
		}
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Send queues state for this client. It returns false when the buffer is
// full; a closed client silently accepts.
func (c *Client) Send(state model.SessionState) bool {
	evt := WsEvent{
		Event:     EventSessionChanged,
		Timestamp: time.Now().UTC(),
		Data: SessionChangedData{
			SessionState: state,
			ShortAddress: helper.ShortAddress(state.Address),
		},
	}
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- evt:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close detaches from the hub and closes the connection. Safe to call repeatedly.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	close(c.done)
	_ = c.conn.Close()
}

// WritePump sends queued events and pings until the client closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case event := <-c.send:
			payload, err := json.Marshal(event)
			if err != nil {
				c.logger.Error("ws: failed to marshal event", zap.Error(err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("ws: write failed", zap.Stringer("client", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump discards inbound messages and notices when the peer goes away.
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("ws: read error", zap.Stringer("client", c.ID), zap.Error(err))
			}
			return
		}
	}
}
