package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flagshipsdk/flagship-go/internal/datastore"
	"github.com/flagshipsdk/flagship-go/interfaces"
)

// Connector establishes a fresh streaming connection. Returning a non-nil
// error means the attempt failed before any events were received; the
// StreamingDataSource will back off and retry.
type Connector func(ctx context.Context) (StreamClient, error)

// StreamingDataSource drives a datastore.Store from a sequence of SSE
// connections, reconnecting with exponential backoff on transient failure
// and going permanently off on an unrecoverable one.
type StreamingDataSource struct {
	store   *datastore.Store
	status  *interfaces.DataSourceStatusManager
	connect Connector
	clock   Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStreamingDataSource builds a data source that isn't yet running.
func NewStreamingDataSource(store *datastore.Store, status *interfaces.DataSourceStatusManager, connect Connector) *StreamingDataSource {
	return &StreamingDataSource{store: store, status: status, connect: connect, clock: systemClock}
}

func (s *StreamingDataSource) now() time.Time { return s.clock() }

// Start begins background synchronization. Safe to call once.
func (s *StreamingDataSource) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	go s.run(runCtx, done)
}

// Shutdown stops the data source and transitions status to off, invoking cb
// once teardown is complete.
func (s *StreamingDataSource) Shutdown(cb func()) {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	s.status.SetState(interfaces.DataSourceStateOff, s.now())
	if cb != nil {
		cb()
	}
}

func (s *StreamingDataSource) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	b := backoff.NewExponentialBackOff()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		client, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.status.SetError(interfaces.DataSourceErrorNetworkError, 0, err.Error(), s.now())
			if !s.sleep(ctx, b.NextBackOff()) {
				return
			}
			continue
		}
		b.Reset()
		permanent := s.consume(ctx, client)
		client.Close()
		if permanent {
			s.status.SetState(interfaces.DataSourceStateOff, s.now())
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !s.sleep(ctx, b.NextBackOff()) {
			return
		}
	}
}

func (s *StreamingDataSource) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// consume reads events/errors from one connection until it ends or fails.
// Returns true if the failure was permanent (caller should stop entirely).
func (s *StreamingDataSource) consume(ctx context.Context, client StreamClient) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-client.Events():
			if !ok {
				return false
			}
			if err := s.handleEvent(ev); err != nil {
				s.status.SetError(interfaces.DataSourceErrorInvalidData, 0, err.Error(), s.now())
				return false
			}
			s.status.SetState(interfaces.DataSourceStateValid, s.now())
		case serr, ok := <-client.Errors():
			if !ok {
				continue
			}
			kind := interfaces.DataSourceErrorNetworkError
			if serr.Permanent {
				kind = interfaces.DataSourceErrorResponse
			}
			s.status.SetError(kind, serr.StatusCode, serr.Err.Error(), s.now())
			return serr.Permanent
		}
	}
}

func (s *StreamingDataSource) handleEvent(ev StreamEvent) error {
	switch ev.Name {
	case "put":
		return applyPut(s.store, ev.Data)
	case "patch":
		return applyPatch(s.store, ev.Data)
	case "delete":
		return applyDelete(s.store, ev.Data)
	default:
		return &unknownEventError{name: ev.Name}
	}
}

type unknownEventError struct{ name string }

func (e *unknownEventError) Error() string { return "unrecognized stream event: " + e.name }
