package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/flagshipsdk/flagship-go/ldlog"
	"github.com/google/uuid"
)

const (
	queueSize              = 1000
	defaultMaxRetries      = 3
	defaultTimeoutSeconds  = 10
)

// Target is one statically-configured webhook destination. Unlike the
// CRUD-managed webhooks of a full control plane, targets are provisioned via
// configuration at startup and take effect on the next process start.
type Target struct {
	URL            string
	Secret         string
	Events         []string // empty matches every event type
	Environments   []string // empty matches every environment
	MaxRetries     int
	TimeoutSeconds int
}

func (t Target) withDefaults() Target {
	if t.MaxRetries == 0 {
		t.MaxRetries = defaultMaxRetries
	}
	if t.TimeoutSeconds == 0 {
		t.TimeoutSeconds = defaultTimeoutSeconds
	}
	return t
}

// Dispatcher fans flag-table change notifications out to configured webhook
// targets: queue, background worker, HMAC-signed delivery with exponential
// backoff retry. It exists purely as an ambient ops-notification side
// channel; nothing in the data-sync or evaluation path depends on it.
type Dispatcher struct {
	targets []Target
	client  *http.Client
	logger  *ldlog.Logger
	queue   chan Event
	done    chan struct{}
	closed  int32
}

// NewDispatcher builds a Dispatcher over a fixed set of targets.
func NewDispatcher(targets []Target, logger *ldlog.Logger) *Dispatcher {
	resolved := make([]Target, len(targets))
	for i, t := range targets {
		resolved[i] = t.withDefaults()
	}
	return &Dispatcher{
		targets: resolved,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
}

// Start begins processing events from the queue.
func (d *Dispatcher) Start() {
	go d.worker()
}

// Close stops the dispatcher once pending deliveries finish. Safe to call
// multiple times.
func (d *Dispatcher) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil
	}
	close(d.queue)
	<-d.done
	return nil
}

// Dispatch queues an event for delivery. Non-blocking: a full queue drops
// the event rather than stalling the caller.
func (d *Dispatcher) Dispatch(event Event) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warnf("webhook queue full (size=%d), dropping event type=%s resource=%s/%s", queueSize, event.Type, event.Resource.Type, event.Resource.Key)
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for event := range d.queue {
		for _, target := range d.targets {
			if !matches(target, event) {
				continue
			}
			d.deliverWithRetry(context.Background(), target, event)
		}
	}
}

func matches(t Target, event Event) bool {
	if len(t.Events) > 0 {
		found := false
		for _, e := range t.Events {
			if e == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(t.Environments) > 0 {
		found := false
		for _, env := range t.Environments {
			if env == event.Environment {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, target Target, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Errorf("failed to marshal webhook payload: url=%s event_type=%s error=%v", target.URL, event.Type, err)
		return
	}

	signature := ComputeHMAC(payload, target.Secret)
	deliveryID := uuid.New().String()

	for attempt := 0; attempt <= target.MaxRetries; attempt++ {
		req, err := http.NewRequest(http.MethodPost, target.URL, bytes.NewReader(payload))
		if err != nil {
			d.logger.Errorf("failed to build webhook request: url=%s error=%v", target.URL, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Flagship-Signature", signature)
		req.Header.Set("X-Flagship-Event", event.Type)
		req.Header.Set("X-Flagship-Delivery", deliveryID)

		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(target.TimeoutSeconds)*time.Second)
		resp, err := d.client.Do(req.WithContext(reqCtx))
		cancel()

		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			resp.Body.Close()
			d.logger.Debugf("webhook delivered: url=%s event_type=%s attempt=%d/%d", target.URL, event.Type, attempt+1, target.MaxRetries+1)
			return
		}
		if resp != nil {
			resp.Body.Close()
		}

		if attempt < target.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			d.logger.Warnf("webhook delivery failed, retrying: url=%s event_type=%s attempt=%d/%d retry_in=%s err=%v", target.URL, event.Type, attempt+1, target.MaxRetries+1, backoff, err)
			time.Sleep(backoff)
			continue
		}
		d.logger.Errorf("webhook delivery failed permanently: url=%s event_type=%s attempts=%d err=%v", target.URL, event.Type, attempt+1, err)
	}
}
