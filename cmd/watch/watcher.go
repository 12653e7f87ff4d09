package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"walletd/internal/apiclient"
)

// Watcher follows a walletd session. It prefers the websocket stream and
// polls /api/session while the stream is down.
type Watcher struct {
	client   *apiclient.Client
	interval time.Duration
	logger   *zap.Logger
	onChange func(apiclient.Session)

	last    apiclient.Session
	hasLast bool
}

func NewWatcher(client *apiclient.Client, interval time.Duration, logger *zap.Logger, onChange func(apiclient.Session)) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{client: client, interval: interval, logger: logger, onChange: onChange}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		err := w.client.Watch(ctx, w.observe)
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("session stream down, polling", zap.Error(err))
		w.pollUntilNextAttempt(ctx)
	}
}

// pollUntilNextAttempt polls once per interval for a few rounds before the
// stream is retried.
func (w *Watcher) pollUntilNextAttempt(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for i := 0; i < 5; i++ {
		s, err := w.client.Session(ctx)
		if err != nil {
			w.logger.Debug("poll failed", zap.Error(err))
		} else {
			w.observe(*s)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// observe reports only actual changes of readiness, address or connection.
func (w *Watcher) observe(s apiclient.Session) {
	if w.hasLast && w.last.IsReady == s.IsReady && w.last.Address == s.Address && w.last.IsConnected == s.IsConnected {
		return
	}
	if w.hasLast && s.UpdatedAt.Before(w.last.UpdatedAt) {
		return
	}
	w.last, w.hasLast = s, true
	w.onChange(s)
}
