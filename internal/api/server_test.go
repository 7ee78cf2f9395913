package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flagshipsdk/flagship-go/internal/auth"
	"github.com/flagshipsdk/flagship-go/internal/store"
	"github.com/flagshipsdk/flagship-go/ldmodel"
)

const testAdminKey = "test-admin-key"

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s := store.New()
	authenticator := auth.NewAuthenticator(testAdminKey, nil)
	srv := NewServer(s, authenticator, nil, 0)
	return srv, s
}

func withAuth(r *http.Request) *http.Request {
	r.Header.Set("Authorization", "Bearer "+testAdminKey)
	return r
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPollingRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/flags/polling", nil)
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestPollingReturnsFlagsAndETag(t *testing.T) {
	srv, s := newTestServer(t)
	zero := 0
	s.PutFlag("flag-a", func(existing *ldmodel.Flag) *ldmodel.Flag {
		return &ldmodel.Flag{On: true, Fallthrough: ldmodel.VariationOrRollout{Variation: &zero}}
	})

	w := httptest.NewRecorder()
	r := withAuth(httptest.NewRequest(http.MethodGet, "/v1/flags/polling", nil))
	srv.Router().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == "" {
		t.Fatal("expected an ETag header")
	}
}

func TestPollingHonorsIfNoneMatch(t *testing.T) {
	srv, s := newTestServer(t)
	etag := s.ETag()

	w := httptest.NewRecorder()
	r := withAuth(httptest.NewRequest(http.MethodGet, "/v1/flags/polling", nil))
	r.Header.Set("If-None-Match", etag)
	srv.Router().ServeHTTP(w, r)

	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}
}

func TestPutFlagRequiresAdmin(t *testing.T) {
	srv, _ := newTestServer(t)
	authenticator := auth.NewAuthenticator("", map[string]auth.Role{})
	srv.auth = authenticator

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/v1/flags/flag-a", bytes.NewReader([]byte(`{"on":true}`)))
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestPutFlagThenPollingReflectsChange(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"on":true,"variations":[true,false],"fallthrough":{"variation":0}}`
	w := httptest.NewRecorder()
	r := withAuth(httptest.NewRequest(http.MethodPut, "/v1/flags/flag-a", bytes.NewReader([]byte(body))))
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w2 := httptest.NewRecorder()
	r2 := withAuth(httptest.NewRequest(http.MethodGet, "/v1/flags/polling", nil))
	srv.Router().ServeHTTP(w2, r2)

	var payload struct {
		Data struct {
			Flags map[string]json.RawMessage `json:"flags"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode polling body: %v", err)
	}
	if _, ok := payload.Data.Flags["flag-a"]; !ok {
		t.Fatalf("expected flag-a in polling response, got %s", w2.Body.String())
	}
}

func TestDeleteFlagRemovesIt(t *testing.T) {
	srv, _ := newTestServer(t)

	putBody := `{"on":true,"variations":[true,false],"fallthrough":{"variation":0}}`
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodPut, "/v1/flags/flag-a", bytes.NewReader([]byte(putBody)))))
	if w.Code != http.StatusOK {
		t.Fatalf("setup PUT failed: %d", w.Code)
	}

	w2 := httptest.NewRecorder()
	srv.Router().ServeHTTP(w2, withAuth(httptest.NewRequest(http.MethodDelete, "/v1/flags/flag-a", nil)))
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}

	w3 := httptest.NewRecorder()
	srv.Router().ServeHTTP(w3, withAuth(httptest.NewRequest(http.MethodGet, "/v1/flags/polling", nil)))
	var payload struct {
		Data struct {
			Flags map[string]json.RawMessage `json:"flags"`
		} `json:"data"`
	}
	_ = json.Unmarshal(w3.Body.Bytes(), &payload)
	if _, ok := payload.Data.Flags["flag-a"]; ok {
		t.Fatalf("expected flag-a to be gone")
	}
}

func TestEventsBulkRequiresSchemaHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	w := httptest.NewRecorder()
	r := withAuth(httptest.NewRequest(http.MethodPost, "/v1/events/bulk", bytes.NewReader([]byte(`[]`))))
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without schema header, got %d", w.Code)
	}
}

func TestEventsBulkAcceptsValidBatch(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `[{"kind":"identify","creationDate":1700000000000}]`
	w := httptest.NewRecorder()
	r := withAuth(httptest.NewRequest(http.MethodPost, "/v1/events/bulk", bytes.NewReader([]byte(body))))
	r.Header.Set("X-LaunchDarkly-Event-Schema", "4")
	r.Header.Set("X-LaunchDarkly-Payload-Id", "11111111-1111-1111-1111-111111111111")
	srv.Router().ServeHTTP(w, r)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}
