package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPRequesterSendsETagOnSubsequentPolls(t *testing.T) {
	var sawETag string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawETag = r.Header.Get("If-None-Match")
		w.Header().Set("ETag", "abc")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"flags":{},"segments":{}}`))
	}))
	defer srv.Close()

	req := NewHTTPRequester(srv.Client(), srv.URL, "test-key")
	if _, _, _, err := req.Poll(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, _, err := req.Poll(t.Context()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawETag != "abc" {
		t.Fatalf("expected second poll to send the stored ETag, got %q", sawETag)
	}
}

func TestHTTPRequesterClassifiesPermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	req := NewHTTPRequester(srv.Client(), srv.URL, "bad-key")
	_, _, permanentErr, err := req.Poll(t.Context())
	if permanentErr == nil {
		t.Fatalf("expected a permanent error for a 403 response")
	}
	if err != nil {
		t.Fatalf("expected no transient error alongside a permanent one, got %v", err)
	}
}
