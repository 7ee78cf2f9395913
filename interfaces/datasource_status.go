// Package interfaces defines the status-provider contracts shared across
// data sources, persistence, and the SDK façade: surfaces the embedding
// application can observe without depending on any single data source
// implementation.
package interfaces

import (
	"sync"
	"time"
)

// DataSourceState is the data source's place in its lifecycle.
type DataSourceState string

const (
	DataSourceStateInitializing DataSourceState = "initializing"
	DataSourceStateValid        DataSourceState = "valid"
	DataSourceStateInterrupted  DataSourceState = "interrupted"
	DataSourceStateOff          DataSourceState = "off"
)

// DataSourceErrorKind classifies the last error a data source observed.
type DataSourceErrorKind string

const (
	DataSourceErrorUnknown       DataSourceErrorKind = "unknown"
	DataSourceErrorNetworkError  DataSourceErrorKind = "networkError"
	DataSourceErrorResponse      DataSourceErrorKind = "errorResponse"
	DataSourceErrorInvalidData   DataSourceErrorKind = "invalidData"
	DataSourceErrorStoreError    DataSourceErrorKind = "storeError"
)

// DataSourceErrorInfo records the most recent error observed by a data
// source, if any.
type DataSourceErrorInfo struct {
	Kind       DataSourceErrorKind
	StatusCode int
	Message    string
	Time       time.Time
}

// DataSourceStatus is the full status snapshot: current state, when it was
// entered, and the last error (if any).
type DataSourceStatus struct {
	State      DataSourceState
	StateSince time.Time
	LastError  *DataSourceErrorInfo
}

// suppressedTransitions lists (from, to) state pairs that must NOT update
// StateSince or notify listeners when the data source briefly reports
// interrupted while it was still in the process of first connecting: an
// interruption before the first successful sync is not a meaningful
// regression, it's still "starting up".
var suppressedTransitions = map[[2]DataSourceState]bool{
	{DataSourceStateInitializing, DataSourceStateInterrupted}: true,
}

// DataSourceStatusManager tracks data source status and notifies listeners
// of changes, applying the suppressed-transition rule.
type DataSourceStatusManager struct {
	mu     sync.Mutex
	status DataSourceStatus
	subs   map[chan DataSourceStatus]struct{}
}

// NewDataSourceStatusManager creates a manager starting in the
// initializing state.
func NewDataSourceStatusManager(now time.Time) *DataSourceStatusManager {
	return &DataSourceStatusManager{
		status: DataSourceStatus{State: DataSourceStateInitializing, StateSince: now},
		subs:   make(map[chan DataSourceStatus]struct{}),
	}
}

// Current returns the current status snapshot.
func (m *DataSourceStatusManager) Current() DataSourceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SetState transitions to a new state at time now, applying the
// same-state-is-a-no-op rule (StateSince is unchanged) and the
// suppressed-transition rule (initializing -> interrupted is swallowed
// entirely: no StateSince update, no listener notification).
func (m *DataSourceStatusManager) SetState(state DataSourceState, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == m.status.State {
		return
	}
	if suppressedTransitions[[2]DataSourceState{m.status.State, state}] {
		return
	}
	m.status.State = state
	m.status.StateSince = now
	m.notifyLocked()
}

// SetError records an error, transitioning to interrupted unless the data
// source is off (a terminal state errors don't revive) or the transition is
// suppressed.
func (m *DataSourceStatusManager) SetError(kind DataSourceErrorKind, statusCode int, message string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.LastError = &DataSourceErrorInfo{Kind: kind, StatusCode: statusCode, Message: message, Time: now}
	if m.status.State == DataSourceStateOff {
		m.notifyLocked()
		return
	}
	target := DataSourceStateInterrupted
	if target == m.status.State {
		m.notifyLocked()
		return
	}
	if suppressedTransitions[[2]DataSourceState{m.status.State, target}] {
		m.notifyLocked()
		return
	}
	m.status.State = target
	m.status.StateSince = now
	m.notifyLocked()
}

func (m *DataSourceStatusManager) notifyLocked() {
	snapshot := m.status
	for ch := range m.subs {
		select {
		case ch <- snapshot:
		default:
			// The listener has not read the previous status yet; replace it
			// so the newest status is the one left waiting.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// OnChange registers a listener that is sent the new status on every change
// (subject to the suppressed-transition rule) and returns an unsubscribe
// function. The channel holds one status: if the listener has not read it
// before the next change, it is replaced by the newer status.
func (m *DataSourceStatusManager) OnChange() (<-chan DataSourceStatus, func()) {
	ch := make(chan DataSourceStatus, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	unsub := func() {
		m.mu.Lock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, unsub
}

// OnChangeUntil registers a listener that automatically unsubscribes the
// first time pred returns true for a received status.
func (m *DataSourceStatusManager) OnChangeUntil(pred func(DataSourceStatus) bool) <-chan DataSourceStatus {
	ch, unsub := m.OnChange()
	done := make(chan DataSourceStatus, 1)
	go func() {
		for status := range ch {
			if pred(status) {
				done <- status
				unsub()
				return
			}
		}
	}()
	return done
}

// DataSourceStatusProvider is the read-only view of a status manager exposed
// to SDK consumers.
type DataSourceStatusProvider interface {
	Current() DataSourceStatus
	OnChange() (<-chan DataSourceStatus, func())
	OnChangeUntil(pred func(DataSourceStatus) bool) <-chan DataSourceStatus
}
