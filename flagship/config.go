// Package flagship is the SDK façade: it wires the data store, data
// source, evaluator, context filter, summarizer, and event processor
// behind a single Client, the way internal/api.NewServer wires its own
// collaborators in one place.
package flagship

import (
	"net/http"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/contextfilter"
	"github.com/flagshipsdk/flagship-go/ldcontext"
)

// ServiceEndpoints overrides the default base URLs for each of the three
// service connections the SDK makes.
type ServiceEndpoints struct {
	Streaming string
	Polling   string
	Events    string
}

func (s ServiceEndpoints) withDefaults() ServiceEndpoints {
	if s.Streaming == "" {
		s.Streaming = "https://stream.launchdarkly.com/all"
	}
	if s.Polling == "" {
		s.Polling = "https://app.launchdarkly.com/sdk/latest-all"
	}
	if s.Events == "" {
		s.Events = "https://events.launchdarkly.com/bulk"
	}
	return s
}

// DataSourceMode selects between streaming and polling synchronization.
type DataSourceMode int

const (
	ModeStreaming DataSourceMode = iota
	ModePolling
)

// DataSourceConfig selects and tunes the synchronization strategy.
type DataSourceConfig struct {
	Mode                  DataSourceMode
	InitialReconnectDelay time.Duration
	PollInterval          time.Duration
}

func (d DataSourceConfig) withDefaults() DataSourceConfig {
	if d.InitialReconnectDelay <= 0 {
		d.InitialReconnectDelay = time.Second
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 30 * time.Second
	}
	return d
}

// EventsConfig tunes the event pipeline.
type EventsConfig struct {
	Enabled                 bool
	Capacity                int
	FlushInterval           time.Duration
	FlushWorkers            int
	AllAttributesPrivate    bool
	PrivateAttributes       []ldcontext.AttrRef
}

func (e EventsConfig) withDefaults() EventsConfig {
	if e.Capacity <= 0 {
		e.Capacity = 10000
	}
	if e.FlushInterval <= 0 {
		e.FlushInterval = 5 * time.Second
	}
	if e.FlushWorkers <= 0 {
		e.FlushWorkers = 5
	}
	return e
}

func (e EventsConfig) toFilterConfig() contextfilter.Config {
	return contextfilter.Config{
		AllAttributesPrivate:    e.AllAttributesPrivate,
		GlobalPrivateAttributes: e.PrivateAttributes,
	}
}

// AppInfo names the embedding application and its version. The client keeps
// it in its Config; no outgoing request carries it.
type AppInfo struct {
	Identifier string
	Version    string
}

// HTTPProperties tunes the underlying HTTP client. Only ResponseTimeout is
// applied, as the client's overall timeout (10s when unset); ConnectTimeout
// and Headers are not used.
type HTTPProperties struct {
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	Headers         map[string]string
}

func (h HTTPProperties) buildClient() *http.Client {
	timeout := h.ResponseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Config is the full set of options accepted by MakeClient.
type Config struct {
	SDKKey           string
	ServiceEndpoints ServiceEndpoints
	DataSource       DataSourceConfig
	Events           EventsConfig
	HTTP             HTTPProperties
	AppInfo          AppInfo
	Offline          bool
}

func (c Config) withDefaults() Config {
	c.ServiceEndpoints = c.ServiceEndpoints.withDefaults()
	c.DataSource = c.DataSource.withDefaults()
	c.Events = c.Events.withDefaults()
	return c
}
