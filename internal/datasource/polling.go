package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flagshipsdk/flagship-go/internal/datastore"
	"github.com/flagshipsdk/flagship-go/interfaces"
)

// PollingDataSource drives a datastore.Store by periodically polling for the
// full data set, treating a 200 response body as a put event and a 304 as
// "no change". Identical state machine to StreamingDataSource.
type PollingDataSource struct {
	store     *datastore.Store
	status    *interfaces.DataSourceStatusManager
	requester Requester
	interval  time.Duration
	clock     Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// lastPollFailed is read/written only from the run goroutine.
	lastPollFailed bool
}

// NewPollingDataSource builds a polling data source with the given interval
// between successful polls.
func NewPollingDataSource(store *datastore.Store, status *interfaces.DataSourceStatusManager, requester Requester, interval time.Duration) *PollingDataSource {
	return &PollingDataSource{store: store, status: status, requester: requester, interval: interval, clock: systemClock}
}

func (p *PollingDataSource) now() time.Time { return p.clock() }

// Start begins background polling.
func (p *PollingDataSource) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()
	go p.run(runCtx, done)
}

// Shutdown stops polling and transitions status to off.
func (p *PollingDataSource) Shutdown(cb func()) {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	p.status.SetState(interfaces.DataSourceStateOff, p.now())
	if cb != nil {
		cb()
	}
}

func (p *PollingDataSource) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	b := backoff.NewExponentialBackOff()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		permanent := p.pollOnce(ctx)
		if permanent {
			p.status.SetState(interfaces.DataSourceStateOff, p.now())
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		wait := p.interval
		if p.lastPollFailed {
			wait = b.NextBackOff()
		} else {
			b.Reset()
		}
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}

func (p *PollingDataSource) pollOnce(ctx context.Context) (permanent bool) {
	statusCode, body, permanentErr, err := p.requester.Poll(ctx)
	if permanentErr != nil {
		p.status.SetError(interfaces.DataSourceErrorResponse, statusCode, permanentErr.Error(), p.now())
		p.lastPollFailed = true
		return true
	}
	if err != nil {
		p.status.SetError(interfaces.DataSourceErrorNetworkError, statusCode, err.Error(), p.now())
		p.lastPollFailed = true
		return false
	}
	if statusCode == 304 {
		p.lastPollFailed = false
		return false
	}
	if applyErr := applyPut(p.store, body); applyErr != nil {
		p.status.SetError(interfaces.DataSourceErrorInvalidData, statusCode, applyErr.Error(), p.now())
		p.lastPollFailed = true
		return false
	}
	p.status.SetState(interfaces.DataSourceStateValid, p.now())
	p.lastPollFailed = false
	return false
}
