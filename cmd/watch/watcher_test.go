package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"walletd/internal/apiclient"
	"walletd/internal/model"
)

func TestObserveReportsOnlyChanges(t *testing.T) {
	var got []apiclient.Session
	w := NewWatcher(nil, time.Second, nil, func(s apiclient.Session) { got = append(got, s) })

	t0 := time.Now()
	ready := apiclient.Session{SessionState: model.NewSessionState(true, "", model.SourceInit, t0)}
	connected := apiclient.Session{SessionState: model.NewSessionState(true, "0x1234567890123456789012345678901234567890", model.SourcePoll, t0.Add(time.Second))}
	older := apiclient.Session{SessionState: model.NewSessionState(true, "", model.SourceSDK, t0.Add(-time.Second))}

	w.observe(ready)
	w.observe(ready)
	w.observe(connected)
	w.observe(older)

	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got))
	}
	if !got[1].IsConnected {
		t.Fatalf("expected connected second change, got %+v", got[1])
	}
}

func TestRunFallsBackToPolling(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session" {
			http.NotFound(rw, r)
			return
		}
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		addr := ""
		if n > 1 {
			addr = "0x1234567890123456789012345678901234567890"
		}
		st := model.NewSessionState(true, addr, model.SourcePoll, time.Unix(int64(n), 0))
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"success": true, "data": st})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes := make(chan apiclient.Session, 4)
	w := NewWatcher(apiclient.New(srv.URL), 10*time.Millisecond, nil, func(s apiclient.Session) { changes <- s })
	go w.Run(ctx)

	first := <-changes
	if !first.IsReady || first.IsConnected {
		t.Fatalf("unexpected first change %+v", first)
	}
	select {
	case second := <-changes:
		if !second.IsConnected {
			t.Fatalf("expected connected change, got %+v", second)
		}
	case <-ctx.Done():
		t.Fatal("no change observed while polling")
	}
}
