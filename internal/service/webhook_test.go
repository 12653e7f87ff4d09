package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"walletd/internal/model"
)

func TestWebhookSendSignsBody(t *testing.T) {
	type received struct {
		sig  string
		body []byte
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{sig: r.Header.Get(SignatureHeader), body: body}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "s3cret", nil)
	defer n.Close()
	st := model.NewSessionState(true, testAddr, model.SourcePoll, time.Now())
	if err := n.Send(context.Background(), st); err != nil {
		t.Fatalf("send: %v", err)
	}

	r := <-got
	if r.sig != Sign("s3cret", r.body) {
		t.Fatalf("signature mismatch: %s", r.sig)
	}
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			Address      string `json:"address"`
			IsConnected  bool   `json:"isConnected"`
			ShortAddress string `json:"shortAddress"`
		} `json:"data"`
	}
	if err := json.Unmarshal(r.body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Event != "session_changed" || payload.Data.Address != testAddr || !payload.Data.IsConnected {
		t.Fatalf("unexpected payload %s", r.body)
	}
	if payload.Data.ShortAddress != "0x1234...7890" {
		t.Fatalf("unexpected short address %q", payload.Data.ShortAddress)
	}
}

func TestWebhookSendWithoutSecretAndErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) != "" {
			t.Errorf("unexpected signature header without secret")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "", nil)
	defer n.Close()
	if err := n.Send(context.Background(), model.SessionState{IsReady: true}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestWebhookNotifyUsesOneBoundedWorker(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		received []time.Time
	)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Data model.SessionState `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		received = append(received, payload.Data.UpdatedAt)
		mu.Unlock()

		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, "", nil)
	defer n.Close()

	base := time.Now()
	start := time.Now()
	for i := 0; i < 100; i++ {
		n.Notify(model.NewSessionState(true, "", model.SourcePoll, base.Add(time.Duration(i)*time.Millisecond)))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Notify blocked on a stalled endpoint for %s", elapsed)
	}
	close(release)

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(received)
	}
	deadline := time.Now().Add(3 * time.Second)
	for count() < webhookQueueSize+1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if maxSeen != 1 {
		t.Fatalf("expected one delivery at a time, saw %d concurrent", maxSeen)
	}
	if len(received) == 0 || len(received) > webhookQueueSize+1 {
		t.Fatalf("expected between 1 and %d deliveries, got %d", webhookQueueSize+1, len(received))
	}
	for i := 1; i < len(received); i++ {
		if received[i].Before(received[i-1]) {
			t.Fatalf("deliveries out of order at %d: %v", i, received)
		}
	}
}

func TestWebhookNotifyAfterCloseIsDropped(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:0/hook", "", nil)
	n.Close()
	n.Close()
	n.Notify(model.SessionState{IsReady: true})
}
