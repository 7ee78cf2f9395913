package ldevents

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/flagshipsdk/flagship-go/ldlog"
)

// deliveryOutcome classifies one HTTP attempt's result against the wire
// protocol's state machine.
type deliveryOutcome int

const (
	outcomeSuccess deliveryOutcome = iota
	outcomeTransientRetryable
	outcomeTransientNotRetryable
	outcomePermanent
)

// DeliveryConfig configures the HTTP delivery worker pool.
type DeliveryConfig struct {
	EventsURI    string
	AuthHeader   string
	Client       *http.Client
	Workers      int
	Logger       *ldlog.Logger
	OnServerTime func(ms int64)
}

func (c *DeliveryConfig) applyDefaults() {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.Logger == nil {
		l := ldlog.DefaultLoggers()
		c.Logger = l.Events
	}
}

// retryDelay returns the single backoff interval used for the one retry
// attempt after a transient failure.
func retryDelay() time.Duration {
	b := backoff.NewExponentialBackOff()
	return b.NextBackOff()
}

// DeliveryManager implements the idle/firstChance/secondChance/
// permanentlyFailed state machine over a fixed-size worker pool.
//
// idle --deliver--> firstChance
// firstChance: success -> idle; transient+retryable -> secondChance;
//   transient+!retryable -> idle (drop); permanent -> permanentlyFailed
// secondChance: success -> idle; transient -> idle (drop); permanent -> permanentlyFailed
type DeliveryManager struct {
	cfg  DeliveryConfig
	pool *pool.Pool

	permanentlyFailed atomic.Bool
	warnedPermanent   sync.Once
}

// NewDeliveryManager builds a delivery manager backed by a fixed-size pool
// of goroutines, one per in-flight batch.
func NewDeliveryManager(cfg DeliveryConfig) *DeliveryManager {
	cfg.applyDefaults()
	d := &DeliveryManager{cfg: cfg}
	d.pool = pool.New().WithMaxGoroutines(cfg.Workers)
	return d
}

// Deliver hands a batch to the worker pool. Non-blocking once a pool slot
// frees up; callers should not depend on delivery having completed by the
// time Deliver returns.
func (d *DeliveryManager) Deliver(batch []outputEvent) {
	if d.permanentlyFailed.Load() {
		return
	}
	d.pool.Go(func() {
		d.deliverOne(batch)
	})
}

// Stop waits for in-flight deliveries to finish. No new events are
// accepted by the processor once shutdown begins, so no Deliver calls
// race this.
func (d *DeliveryManager) Stop() {
	d.pool.Wait()
}

// PermanentlyFailed reports whether a delivery has ever received a
// permanent error, in which case the processor stops flushing entirely.
func (d *DeliveryManager) PermanentlyFailed() bool {
	return d.permanentlyFailed.Load()
}

func (d *DeliveryManager) deliverOne(batch []outputEvent) {
	payload, err := json.Marshal(batch)
	if err != nil {
		d.cfg.Logger.Errorf("failed to marshal event batch: %v", err)
		return
	}

	outcome, statusCode, serverDate := d.attempt(payload)
	switch outcome {
	case outcomeSuccess:
		if serverDate > 0 && d.cfg.OnServerTime != nil {
			d.cfg.OnServerTime(serverDate)
		}
		return
	case outcomePermanent:
		d.markPermanentlyFailed(statusCode)
		return
	case outcomeTransientNotRetryable:
		d.cfg.Logger.Warnf("event delivery failed (status %d), not retrying", statusCode)
		return
	case outcomeTransientRetryable:
		// fall through to the single retry below
	}

	time.Sleep(retryDelay())
	outcome, statusCode, serverDate = d.attempt(payload)
	switch outcome {
	case outcomeSuccess:
		if serverDate > 0 && d.cfg.OnServerTime != nil {
			d.cfg.OnServerTime(serverDate)
		}
	case outcomePermanent:
		d.markPermanentlyFailed(statusCode)
	default:
		d.cfg.Logger.Warnf("event delivery failed after retry (status %d), dropping batch", statusCode)
	}
}

func (d *DeliveryManager) markPermanentlyFailed(statusCode int) {
	d.permanentlyFailed.Store(true)
	d.warnedPermanent.Do(func() {
		d.cfg.Logger.Errorf("event delivery permanently failed (status %d); no further events will be sent", statusCode)
	})
}

// attempt performs one HTTP POST and classifies the outcome. serverDate is
// the parsed Date response header in epoch milliseconds, or 0 if absent.
func (d *DeliveryManager) attempt(payload []byte) (outcome deliveryOutcome, statusCode int, serverDate int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.EventsURI, bytes.NewReader(payload))
	if err != nil {
		d.cfg.Logger.Errorf("failed to build event delivery request: %v", err)
		return outcomeTransientNotRetryable, 0, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", d.cfg.AuthHeader)
	req.Header.Set("X-LaunchDarkly-Event-Schema", "4")
	req.Header.Set("X-LaunchDarkly-Payload-Id", uuid.New().String())

	resp, err := d.cfg.Client.Do(req)
	if err != nil {
		return outcomeTransientRetryable, 0, 0
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if dateHdr := resp.Header.Get("Date"); dateHdr != "" {
			if t, err := http.ParseTime(dateHdr); err == nil {
				serverDate = t.UnixMilli()
			}
		}
		return outcomeSuccess, resp.StatusCode, serverDate
	}
	return classifyStatus(resp.StatusCode), resp.StatusCode, 0
}

// classifyStatus implements the transient/retryable/permanent split in
// §4.6: 5xx and {400, 408, 429} are transient; 413 is transient but not
// retryable (the payload itself is the problem); everything else 4xx is
// permanent.
func classifyStatus(statusCode int) deliveryOutcome {
	if statusCode >= 500 {
		return outcomeTransientRetryable
	}
	switch statusCode {
	case 400, 408, 429:
		return outcomeTransientRetryable
	case 413:
		return outcomeTransientNotRetryable
	}
	if statusCode >= 400 && statusCode < 500 {
		return outcomePermanent
	}
	return outcomeTransientNotRetryable
}
