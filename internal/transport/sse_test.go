package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/datasource"
)

func TestConnectStreamParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("event: put\ndata: {\"path\":\"/\",\"data\":{\"flags\":{},\"segments\":{}}}\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	client, err := ConnectStream(t.Context(), srv.Client(), srv.URL, "test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	select {
	case ev := <-client.Events():
		if ev.Name != "put" {
			t.Fatalf("expected event name 'put', got %q", ev.Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestConnectStreamRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := ConnectStream(t.Context(), srv.Client(), srv.URL, "bad-key")
	if err == nil {
		t.Fatalf("expected an error for a non-200 stream connect response")
	}
}

var _ datasource.StreamClient = (*SSEClient)(nil)
