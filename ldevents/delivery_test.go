package ldevents

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestDeliverySuccessReconcilesServerTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var gotServerTime atomic.Int64
	d := NewDeliveryManager(DeliveryConfig{
		EventsURI:    srv.URL,
		AuthHeader:   "test-key",
		OnServerTime: func(ms int64) { gotServerTime.Store(ms) },
	})
	d.Deliver([]outputEvent{{"kind": "identify"}})
	waitFor(t, func() bool { return gotServerTime.Load() != 0 })
	d.Stop()
}

func TestDeliveryPermanentErrorStopsAcceptingWork(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewDeliveryManager(DeliveryConfig{EventsURI: srv.URL, AuthHeader: "bad-key"})
	d.Deliver([]outputEvent{{"kind": "identify"}})
	waitFor(t, func() bool { return d.PermanentlyFailed() })
	d.Stop()

	d.Deliver([]outputEvent{{"kind": "identify"}})
	time.Sleep(50 * time.Millisecond)
	if d.PermanentlyFailed() != true {
		t.Fatalf("expected manager to remain permanently failed")
	}
}

func TestTransientErrorRetriesOnceThenDrops(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDeliveryManager(DeliveryConfig{EventsURI: srv.URL, AuthHeader: "test-key"})
	d.Deliver([]outputEvent{{"kind": "identify"}})
	waitFor(t, func() bool { return hits.Load() >= 2 })
	d.Stop()
	if d.PermanentlyFailed() {
		t.Fatalf("transient errors should not mark the manager permanently failed")
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]deliveryOutcome{
		500: outcomeTransientRetryable,
		502: outcomeTransientRetryable,
		400: outcomeTransientRetryable,
		408: outcomeTransientRetryable,
		429: outcomeTransientRetryable,
		413: outcomeTransientNotRetryable,
		401: outcomePermanent,
		403: outcomePermanent,
		404: outcomePermanent,
	}
	for status, want := range cases {
		if got := classifyStatus(status); got != want {
			t.Errorf("classifyStatus(%d) = %v, want %v", status, got, want)
		}
	}
}
