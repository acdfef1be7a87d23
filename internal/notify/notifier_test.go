package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sizerbatch/internal/testutil"
	"sizerbatch/pkg/cloudevent"
)

func TestPublishDelivers(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var received []cloudevent.CloudEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event cloudevent.CloudEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhook(Config{URL: srv.URL}, nil)
	defer notifier.Close(context.Background())

	notifier.Publish(EventJobSucceeded, "sample-a", map[string]any{"attempt": 1})
	notifier.Publish(EventRunCompleted, "delivery-01", map[string]any{"succeeded": 1, "failed": 0})

	testutil.MustWaitFor(t, func() bool {
		return notifier.Stats().Delivered == 2
	}, testutil.WithTimeout(5*time.Second))

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
	if received[0].Type != EventJobSucceeded || received[0].Subject != "sample-a" {
		t.Errorf("unexpected first event %+v", received[0])
	}
}

func TestDeliveryRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhook(Config{URL: srv.URL, MaxRetries: 3}, nil)
	defer notifier.Close(context.Background())

	notifier.Publish(EventJobFailed, "sample-a", nil)

	testutil.MustWaitFor(t, func() bool {
		return notifier.Stats().Delivered == 1
	}, testutil.WithTimeout(10*time.Second))

	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 delivery attempts, got %d", got)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	notifier := NewWebhook(Config{URL: srv.URL, MaxRetries: 3}, nil)
	defer notifier.Close(context.Background())

	notifier.Publish(EventJobRetried, "sample-a", nil)

	testutil.MustWaitFor(t, func() bool {
		return notifier.Stats().Failed == 1
	}, testutil.WithTimeout(5*time.Second))

	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 delivery attempt for client error, got %d", got)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhook(Config{URL: srv.URL}, nil)
	for i := 0; i < 5; i++ {
		notifier.Publish(EventJobSucceeded, "sample", nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := notifier.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := notifier.Stats().Delivered; got != 5 {
		t.Errorf("expected all 5 events delivered on close, got %d", got)
	}
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	// Must be safe to call with anything.
	var p Publisher = Nop{}
	p.Publish(EventRunCompleted, "delivery", map[string]any{"succeeded": 0})
}
