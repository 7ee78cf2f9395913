package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/auth"
	"github.com/flagshipsdk/flagship-go/internal/store"
	"github.com/flagshipsdk/flagship-go/internal/telemetry"
	"github.com/flagshipsdk/flagship-go/internal/webhook"
	"github.com/flagshipsdk/flagship-go/ldmodel"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// heartbeatInterval is how often the stream sends a comment-only ping to
// keep idle connections (and their intermediate proxies) alive.
const heartbeatInterval = 25 * time.Second

// Server wires the control-plane store to the SDK-facing wire endpoints:
// streaming, polling, events ingestion, and the admin mutate routes that
// drive them.
type Server struct {
	store          *store.Store
	auth           *auth.Authenticator
	webhooks       *webhook.Dispatcher
	rateLimitPerIP int
}

// NewServer builds a Server. dispatcher may be nil when no webhook target is
// configured. rateLimitPerIP governs the polling/events routes, the highest
// traffic surface; it falls back to 100 if zero or negative.
func NewServer(s *store.Store, authenticator *auth.Authenticator, dispatcher *webhook.Dispatcher, rateLimitPerIP int) *Server {
	if rateLimitPerIP <= 0 {
		rateLimitPerIP = 100
	}
	return &Server{store: s, auth: authenticator, webhooks: dispatcher, rateLimitPerIP: rateLimitPerIP}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	r.Use(telemetry.Tracing)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "REPORT"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-LaunchDarkly-Event-Schema", "X-LaunchDarkly-Payload-Id"},
		ExposedHeaders:   []string{"ETag", "Date"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)

	// Polling and events ingestion: short timeout, per-IP rate limit.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Use(httprate.LimitByIP(s.rateLimitPerIP, time.Minute))
		r.Use(s.auth.RequireAuth(auth.RoleReadonly))

		r.Get("/v1/flags/polling", s.handlePolling)
		r.Method("REPORT", "/v1/flags/polling", http.HandlerFunc(s.handlePolling))
		r.Post("/v1/events/bulk", s.handleEventsBulk)
	})

	// Admin mutate routes: flags and segments.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Use(httprate.LimitByIP(100, time.Minute))
		r.Use(s.auth.RequireAuth(auth.RoleAdmin))

		r.Put("/v1/flags/{key}", s.handlePutFlag)
		r.Delete("/v1/flags/{key}", s.handleDeleteFlag)
		r.Put("/v1/segments/{key}", s.handlePutSegment)
		r.Delete("/v1/segments/{key}", s.handleDeleteSegment)
	})

	// SSE route: no timeout, gentle per-IP connect limit.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Use(s.auth.RequireAuth(auth.RoleReadonly))
		r.Get("/v1/flags/stream", s.handleStream)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handlePolling serves the full current flags+segments set, honoring
// If-None-Match against the store's content ETag.
func (s *Server) handlePolling(w http.ResponseWriter, r *http.Request) {
	etag := s.store.ETag()
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("ETag", etag)
	w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	payload, err := s.store.FullPutPayload()
	if err != nil {
		InternalError(w, r, "failed to encode flag data")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// handleStream relays the store's change feed as an SSE stream: an initial
// "put" carrying the full data set, then "patch"/"delete" events as they
// occur, with a periodic comment-only ping to keep the connection alive.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	initial, err := s.store.FullPutPayload()
	if err != nil {
		http.Error(w, "failed to encode flag data", http.StatusInternalServerError)
		return
	}
	writeSSERaw(w, "put", initial)
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				return
			}
			writeSSERaw(w, ev.Name, ev.Payload)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}

func writeSSERaw(w http.ResponseWriter, event string, data []byte) {
	_, _ = w.Write([]byte("event: " + event + "\ndata: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}

// handleEventsBulk accepts a batch of analytics events from an SDK's event
// processor. The dev server doesn't warehouse events; it validates the
// envelope, counts them for telemetry, and acknowledges.
func (s *Server) handleEventsBulk(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-LaunchDarkly-Event-Schema") == "" {
		telemetry.EventsIngested.WithLabelValues("rejected").Inc()
		BadRequestError(w, r, ErrCodeMissingField, "missing X-LaunchDarkly-Event-Schema header")
		return
	}

	var batch []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		telemetry.EventsIngested.WithLabelValues("rejected").Inc()
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON: "+err.Error())
		return
	}

	telemetry.EventsIngested.WithLabelValues("accepted").Add(float64(len(batch)))
	w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePutFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var incoming ldmodel.Flag
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON: "+err.Error())
		return
	}

	before, after := s.store.PutFlag(key, func(existing *ldmodel.Flag) *ldmodel.Flag {
		f := incoming
		return &f
	})
	telemetry.StoreFlags.Set(float64(len(s.store.AllFlags())))

	s.notifyFlagChange(r, key, before, after)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "etag": s.store.ETag()})
}

func (s *Server) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	before, _ := s.store.DeleteFlag(key)
	telemetry.StoreFlags.Set(float64(len(s.store.AllFlags())))

	s.notifyFlagChange(r, key, before, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "etag": s.store.ETag()})
}

func (s *Server) handlePutSegment(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var incoming ldmodel.Segment
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON: "+err.Error())
		return
	}

	before, after := s.store.PutSegment(key, func(existing *ldmodel.Segment) *ldmodel.Segment {
		seg := incoming
		return &seg
	})

	s.notifySegmentChange(r, key, before, after)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "etag": s.store.ETag()})
}

func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	before, _ := s.store.DeleteSegment(key)

	s.notifySegmentChange(r, key, before, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "etag": s.store.ETag()})
}

func (s *Server) notifyFlagChange(r *http.Request, key string, before, after *ldmodel.Flag) {
	if s.webhooks == nil {
		return
	}
	event := webhook.NewEventBuilder(r).
		ForFlag(key, flagEnv(r)).
		WithStates(toMap(before), toMap(after)).
		Build()
	s.webhooks.Dispatch(event)
}

func (s *Server) notifySegmentChange(r *http.Request, key string, before, after *ldmodel.Segment) {
	if s.webhooks == nil {
		return
	}
	event := webhook.NewEventBuilder(r).
		ForSegment(key, flagEnv(r)).
		WithStates(toMap(before), toMap(after)).
		Build()
	s.webhooks.Dispatch(event)
}

// flagEnv reports the environment a mutate request targets, taken from the
// env query parameter if present; the dev server is single-environment, so
// this is informational only and defaults to "default".
func flagEnv(r *http.Request) string {
	if env := strings.TrimSpace(r.URL.Query().Get("env")); env != "" {
		return env
	}
	return "default"
}
