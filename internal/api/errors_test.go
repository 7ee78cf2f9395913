package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBadRequestErrorWritesCodeAndMessage(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/events/bulk", nil)

	BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON: unexpected end of input")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != ErrCodeInvalidJSON {
		t.Fatalf("expected code %q, got %q", ErrCodeInvalidJSON, resp.Code)
	}
	if resp.Message == "" {
		t.Fatal("expected a message")
	}
}

func TestBadRequestErrorMissingField(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/events/bulk", nil)

	BadRequestError(w, r, ErrCodeMissingField, "missing X-LaunchDarkly-Event-Schema header")

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != ErrCodeMissingField {
		t.Fatalf("expected code %q, got %q", ErrCodeMissingField, resp.Code)
	}
}

func TestInternalErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/flags/polling", nil)

	InternalError(w, r, "failed to encode flag data")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != ErrCodeInternal {
		t.Fatalf("expected code %q, got %q", ErrCodeInternal, resp.Code)
	}
}

func TestErrorResponseOmitsRequestIDWithoutMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/flags/polling", nil)

	InternalError(w, r, "boom")

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// No chi RequestID middleware in this direct call, so it's empty; the
	// field still round-trips cleanly as omitted.
	if resp.RequestID != "" {
		t.Fatalf("expected empty request id without chi middleware, got %q", resp.RequestID)
	}
}
