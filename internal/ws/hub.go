package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"walletd/internal/model"
)

// subscription is the hub's non-owning reference to a consumer callback.
type subscription struct {
	id     uuid.UUID
	fn     func(model.SessionState)
	active atomic.Bool
}

// Hub fans session snapshots out to every subscriber.
//
// Publish only queues; Run delivers the queue in publication order, invoking
// subscribers in registration order. Each broadcast iterates a copy of the
// subscriber list, so Subscribe and unsubscribe are safe from inside a
// callback.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	subs    []*subscription
	pending []model.SessionState

	wake chan struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Run must be started in its own goroutine and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.wake:
			h.drain()
		}
	}
}

// Publish queues a snapshot for delivery. It never blocks.
func (h *Hub) Publish(state model.SessionState) {
	h.mu.Lock()
	h.pending = append(h.pending, state)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers fn. The returned func removes exactly this
// registration; it may be called any number of times, from any goroutine,
// including after Run has stopped.
func (h *Hub) Subscribe(fn func(model.SessionState)) (unsubscribe func()) {
	sub := &subscription{id: uuid.New(), fn: fn}
	sub.active.Store(true)

	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	h.logger.Debug("hub: subscribed", zap.Stringer("id", sub.id))

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		h.mu.Lock()
		for i, s := range h.subs {
			if s == sub {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				break
			}
		}
		h.mu.Unlock()
		h.logger.Debug("hub: unsubscribed", zap.Stringer("id", sub.id))
	}
}

// SubscribeState lets a Hub act as a Source.
func (h *Hub) SubscribeState(fn func(model.SessionState)) (unsubscribe func()) {
	return h.Subscribe(fn)
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) drain() {
	for {
		h.mu.Lock()
		if len(h.pending) == 0 {
			h.mu.Unlock()
			return
		}
		state := h.pending[0]
		h.pending = h.pending[1:]
		subs := make([]*subscription, len(h.subs))
		copy(subs, h.subs)
		h.mu.Unlock()

		for _, sub := range subs {
			h.deliver(sub, state)
		}
	}
}

// deliver skips a subscription that was removed after the broadcast's copy
// was taken. Unsubscribe never waits, so a callback already running when it
// is called still finishes; no new call starts afterwards.
func (h *Hub) deliver(sub *subscription, state model.SessionState) {
	if !sub.active.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("hub: subscriber panicked",
				zap.Stringer("id", sub.id),
				zap.Any("panic", r))
		}
	}()
	sub.fn(state)
}
