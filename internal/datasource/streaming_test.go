package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/datastore"
	"github.com/flagshipsdk/flagship-go/interfaces"
)

type fakeStreamClient struct {
	events chan StreamEvent
	errs   chan StreamError
	closed chan struct{}
}

func newFakeStreamClient() *fakeStreamClient {
	return &fakeStreamClient{
		events: make(chan StreamEvent, 4),
		errs:   make(chan StreamError, 4),
		closed: make(chan struct{}, 1),
	}
}

func (f *fakeStreamClient) Events() <-chan StreamEvent { return f.events }
func (f *fakeStreamClient) Errors() <-chan StreamError  { return f.errs }
func (f *fakeStreamClient) Close()                      { select { case f.closed <- struct{}{}: default: } }

func TestStreamingDataSourceAppliesPut(t *testing.T) {
	store := datastore.New()
	status := interfaces.NewDataSourceStatusManager(time.Now())
	client := newFakeStreamClient()
	connectCount := 0
	connect := func(ctx context.Context) (StreamClient, error) {
		connectCount++
		return client, nil
	}
	ds := NewStreamingDataSource(store, status, connect)
	ds.Start(context.Background())

	client.events <- StreamEvent{Name: "put", Data: []byte(`{"path":"/","data":{"flags":{"f1":{"key":"f1","version":1,"on":true,"variations":[false,true]}},"segments":{}}}`)}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := store.GetFlag("f1"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for flag to be applied")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if status.Current().State != interfaces.DataSourceStateValid {
		t.Fatalf("expected valid state, got %v", status.Current().State)
	}
	ds.Shutdown(nil)
	if status.Current().State != interfaces.DataSourceStateOff {
		t.Fatalf("expected off state after shutdown")
	}
}

func TestStreamingDataSourcePermanentErrorGoesOff(t *testing.T) {
	store := datastore.New()
	status := interfaces.NewDataSourceStatusManager(time.Now())
	client := newFakeStreamClient()
	connect := func(ctx context.Context) (StreamClient, error) { return client, nil }
	ds := NewStreamingDataSource(store, status, connect)
	ds.Start(context.Background())

	client.errs <- StreamError{Permanent: true, StatusCode: 401, Err: errors.New("unauthorized")}

	deadline := time.After(2 * time.Second)
	for status.Current().State != interfaces.DataSourceStateOff {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for off state, currently %v", status.Current().State)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
