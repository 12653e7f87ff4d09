package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"walletd/internal/model"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func state(addr string) model.SessionState {
	return model.NewSessionState(true, addr, model.SourceSDK, time.Now())
}

// recorder collects delivered addresses for one subscriber.
type recorder struct {
	mu   sync.Mutex
	name string
	got  []string
	log  *[]string
	lmu  *sync.Mutex
}

func (r *recorder) fn(s model.SessionState) {
	r.mu.Lock()
	r.got = append(r.got, s.Address)
	r.mu.Unlock()
	if r.log != nil {
		r.lmu.Lock()
		*r.log = append(*r.log, r.name)
		r.lmu.Unlock()
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversInRegistrationOrder(t *testing.T) {
	h := startHub(t)

	var order []string
	var mu sync.Mutex
	a := &recorder{name: "a", log: &order, lmu: &mu}
	b := &recorder{name: "b", log: &order, lmu: &mu}
	c := &recorder{name: "c", log: &order, lmu: &mu}
	h.Subscribe(a.fn)
	h.Subscribe(b.fn)
	h.Subscribe(c.fn)

	h.Publish(state("0x1"))
	h.Publish(state("0x2"))

	waitFor(t, "two broadcasts", func() bool { return c.count() == 2 })

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "b", "c", "a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
	if a.got[0] != "0x1" || a.got[1] != "0x2" {
		t.Fatalf("expected FIFO delivery, got %v", a.got)
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := startHub(t)

	a, b := &recorder{}, &recorder{}
	unsubA := h.Subscribe(a.fn)
	h.Subscribe(b.fn)

	h.Publish(state("0x1"))
	waitFor(t, "first broadcast", func() bool { return a.count() == 1 && b.count() == 1 })

	unsubA()
	unsubA()
	if h.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", h.Len())
	}

	h.Publish(state("0x2"))
	waitFor(t, "second broadcast", func() bool { return b.count() == 2 })
	if a.count() != 1 {
		t.Fatalf("unsubscribed listener received %d broadcasts", a.count())
	}
}

func TestHubSubscribeDuringBroadcastIsDeferred(t *testing.T) {
	h := startHub(t)

	late := &recorder{}
	var once sync.Once
	first := &recorder{}
	h.Subscribe(func(s model.SessionState) {
		first.fn(s)
		once.Do(func() { h.Subscribe(late.fn) })
	})

	h.Publish(state("0x1"))
	waitFor(t, "first broadcast", func() bool { return first.count() == 1 })
	waitFor(t, "late subscription", func() bool { return h.Len() == 2 })
	if late.count() != 0 {
		t.Fatalf("late subscriber saw the event it joined during")
	}

	h.Publish(state("0x2"))
	waitFor(t, "late delivery", func() bool { return late.count() == 1 })
	if first.count() != 2 {
		t.Fatalf("expected 2 broadcasts for first listener, got %d", first.count())
	}
}

func TestHubUnsubscribeDuringBroadcastSkipsRemoved(t *testing.T) {
	h := startHub(t)

	victim := &recorder{}
	var unsubVictim func()
	h.Subscribe(func(model.SessionState) { unsubVictim() })
	unsubVictim = h.Subscribe(victim.fn)
	tail := &recorder{}
	h.Subscribe(tail.fn)

	h.Publish(state("0x1"))
	waitFor(t, "tail delivery", func() bool { return tail.count() == 1 })
	if victim.count() != 0 {
		t.Fatalf("listener removed mid-broadcast still received %d events", victim.count())
	}
}

func TestHubSurvivesPanickingSubscriber(t *testing.T) {
	h := startHub(t)

	h.Subscribe(func(model.SessionState) { panic("boom") })
	after := &recorder{}
	h.Subscribe(after.fn)

	h.Publish(state("0x1"))
	waitFor(t, "delivery after panic", func() bool { return after.count() == 1 })
}

func TestHubUnsubscribeAfterStop(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	unsub := h.Subscribe(func(model.SessionState) {})
	cancel()
	<-done

	unsub()
	unsub()
	h.Publish(state("0x1"))
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Len())
	}
}

func TestHubDeliverSkipsRemovedSubscription(t *testing.T) {
	h := NewHub(nil)
	r := &recorder{}
	unsub := h.Subscribe(r.fn)

	h.mu.Lock()
	sub := h.subs[0]
	h.mu.Unlock()

	unsub()
	h.deliver(sub, state("0x1"))
	if r.count() != 0 {
		t.Fatalf("removed subscription was called %d times", r.count())
	}
}

func TestHubUnsubscribeWhilePredecessorBlocks(t *testing.T) {
	h := startHub(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.Subscribe(func(model.SessionState) {
		close(entered)
		<-release
	})
	late := &recorder{}
	unsubLate := h.Subscribe(late.fn)
	tail := &recorder{}
	h.Subscribe(tail.fn)

	h.Publish(state("0x1"))
	<-entered
	unsubLate()
	close(release)

	waitFor(t, "tail delivery", func() bool { return tail.count() == 1 })
	if late.count() != 0 {
		t.Fatalf("subscriber removed before its turn still received %d events", late.count())
	}
}
