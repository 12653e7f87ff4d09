package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"walletd/internal/helper"
	"walletd/internal/model"
	"walletd/internal/ws"
)

const SignatureHeader = "X-Walletd-Signature"

// webhookQueueSize bounds the snapshots waiting for delivery. When the
// endpoint falls this far behind, new snapshots are dropped.
const webhookQueueSize = 32

type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// WebhookNotifier posts every session broadcast to a configured URL.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
	logger *zap.Logger

	queue     chan model.SessionState
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWebhookNotifier(url, secret string, logger *zap.Logger) *WebhookNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
		queue:  make(chan model.SessionState, webhookQueueSize),
		done:   make(chan struct{}),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// Sign is the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Send delivers one snapshot synchronously.
func (n *WebhookNotifier) Send(ctx context.Context, state model.SessionState) error {
	payload := WebhookPayload{
		Event:     ws.EventSessionChanged,
		Timestamp: time.Now().UTC(),
		Data: ws.SessionChangedData{
			SessionState: state,
			ShortAddress: helper.ShortAddress(state.Address),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
	return nil
}

// Notify is the hub subscriber form of Send. It only queues: one worker
// delivers in order, so a slow endpoint never holds up other subscribers.
func (n *WebhookNotifier) Notify(state model.SessionState) {
	select {
	case <-n.done:
		return
	default:
	}
	select {
	case n.queue <- state:
	default:
		n.logger.Warn("webhook queue full, dropping snapshot",
			zap.String("url", n.url),
			zap.Time("updated_at", state.UpdatedAt))
	}
}

// Close stops the worker after the delivery in progress, if any. Queued
// snapshots are discarded.
func (n *WebhookNotifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
	n.wg.Wait()
}

func (n *WebhookNotifier) run() {
	defer n.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-n.done
		cancel()
	}()

	for {
		select {
		case <-n.done:
			return
		case state := <-n.queue:
			if err := n.Send(ctx, state); err != nil && ctx.Err() == nil {
				n.logger.Warn("webhook delivery failed", zap.String("url", n.url), zap.Error(err))
			}
		}
	}
}
