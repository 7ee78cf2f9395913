package ldevents

import (
	"sync"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/contextfilter"
	"github.com/flagshipsdk/flagship-go/internal/eventsummary"
	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldlog"
	"github.com/flagshipsdk/flagship-go/ldreason"
)

// Config controls a Processor's capacities, flush cadence, and delivery.
type Config struct {
	InboxCapacity  int
	OutboxCapacity int
	FlushInterval  time.Duration
	FlushWorkers   int
	Privacy        contextfilter.Config
	Delivery       Delivery
	Logger         *ldlog.Logger
	Clock          func() time.Time
}

func (c *Config) applyDefaults() {
	if c.InboxCapacity <= 0 {
		c.InboxCapacity = 10000
	}
	if c.OutboxCapacity <= 0 {
		c.OutboxCapacity = 500
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.FlushWorkers <= 0 {
		c.FlushWorkers = 5
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		l := ldlog.DefaultLoggers()
		c.Logger = l.Events
	}
}

// Delivery is the subset of deliveryManager's surface the processor needs,
// kept as an interface so tests can substitute a fake.
type Delivery interface {
	Deliver(batch []outputEvent)
	Stop()
	PermanentlyFailed() bool
}

// Processor owns the inbox, outbox, and summarizer. Exactly one goroutine
// (run) ever touches the outbox or the summarizer; callers only ever
// reach the inbox channel.
type Processor struct {
	cfg Config

	inbox chan InputEvent

	mu         sync.Mutex
	outbox     []outputEvent
	summarizer *eventsummary.Summarizer

	lastKnownServerTimeMu sync.Mutex
	lastKnownServerTime   int64

	flushCh chan struct{}
	cancel  chan struct{}
	done    chan struct{}

	inboxDroppedMu        sync.Mutex
	inboxDroppedInPeriod  bool
	outboxDroppedInPeriod bool

	stoppedMu sync.Mutex
	stopped   bool
}

// NewProcessor builds a running Processor. Close must be called to release
// its background goroutine.
func NewProcessor(cfg Config) *Processor {
	cfg.applyDefaults()
	p := &Processor{
		cfg:        cfg,
		inbox:      make(chan InputEvent, cfg.InboxCapacity),
		summarizer: eventsummary.New(cfg.Clock().UnixMilli()),
		flushCh:    make(chan struct{}, 1),
		cancel:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go p.run()
	return p
}

// Send is a non-blocking best-effort handoff. If the inbox is full, the
// event is dropped and a warning is logged once per flush period.
func (p *Processor) Send(event InputEvent) {
	p.stoppedMu.Lock()
	stopped := p.stopped
	p.stoppedMu.Unlock()
	if stopped {
		return
	}
	select {
	case p.inbox <- event:
	default:
		p.inboxDroppedMu.Lock()
		alreadyWarned := p.inboxDroppedInPeriod
		p.inboxDroppedInPeriod = true
		p.inboxDroppedMu.Unlock()
		if !alreadyWarned {
			p.cfg.Logger.Warnf("event inbox full (capacity %d), dropping events", p.cfg.InboxCapacity)
		}
	}
}

// Flush triggers an out-of-band flush. Non-blocking.
func (p *Processor) Flush() {
	select {
	case p.flushCh <- struct{}{}:
	default:
	}
}

// Close stops the flush timer, performs a final flush, and waits for it to
// be handed to the delivery layer.
func (p *Processor) Close() {
	p.stoppedMu.Lock()
	if p.stopped {
		p.stoppedMu.Unlock()
		return
	}
	p.stopped = true
	p.stoppedMu.Unlock()
	close(p.cancel)
	<-p.done
	if p.cfg.Delivery != nil {
		p.cfg.Delivery.Stop()
	}
}

func (p *Processor) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case ev := <-p.inbox:
			p.handle(ev)
		case <-ticker.C:
			p.doFlush()
		case <-p.flushCh:
			p.doFlush()
		case <-p.cancel:
			p.drain()
			p.doFlush()
			return
		}
	}
}

// drain empties whatever is left in the inbox without blocking, so a
// Close doesn't lose events that were sent moments before.
func (p *Processor) drain() {
	for {
		select {
		case ev := <-p.inbox:
			p.handle(ev)
		default:
			return
		}
	}
}

func (p *Processor) handle(event InputEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := event.(type) {
	case EvaluationInput:
		p.handleEvaluation(e)
	case IdentifyInput:
		p.pushLocked(outputEvent{
			"kind":         "identify",
			"creationDate": e.CreationDate,
			"context":      p.filterLocked(e.Context),
		})
	case CustomInput:
		out := outputEvent{
			"kind":         "custom",
			"creationDate": e.CreationDate,
			"key":          e.Key,
			"contextKeys":  contextKeys(e.Context),
		}
		if e.HasData {
			out["data"] = e.Data.ToAny()
		}
		if e.MetricValue != nil {
			out["metricValue"] = *e.MetricValue
		}
		p.pushLocked(out)
	}
}

func (p *Processor) handleEvaluation(e EvaluationInput) {
	isFallthrough := e.Reason.Kind == ldreason.KindFallthrough
	full := e.TrackEvents || (e.TrackEventsFallthrough && isFallthrough) || e.RequireFullEvent

	if full {
		out := outputEvent{
			"kind":         "feature",
			"creationDate": e.CreationDate,
			"key":          e.FlagKey,
			"value":        e.Value.ToAny(),
			"default":      e.Default.ToAny(),
			"contextKeys":  contextKeys(e.Context),
		}
		if e.HasVersion {
			out["version"] = e.FlagVersion
		}
		if e.HasVariation {
			out["variation"] = e.Variation
		}
		if e.Reason.InExperiment {
			out["reason"] = e.Reason
		}
		if e.HasPrereqOf {
			out["prereqOf"] = e.PrereqOf
		}
		p.pushLocked(out)
	}

	if e.DebugEventsUntilDate != nil {
		now := p.cfg.Clock().UnixMilli()
		if *e.DebugEventsUntilDate > maxInt64(now, p.serverTime()) {
			out := outputEvent{
				"kind":         "debug",
				"creationDate": e.CreationDate,
				"key":          e.FlagKey,
				"value":        e.Value.ToAny(),
				"default":      e.Default.ToAny(),
				"context":      p.filterLocked(e.Context),
			}
			if e.HasVersion {
				out["version"] = e.FlagVersion
			}
			if e.HasVariation {
				out["variation"] = e.Variation
			}
			p.pushLocked(out)
		}
	}

	p.summarizer.Update(e.FlagKey, e.FlagVersion, e.HasVersion, e.Variation, e.HasVariation, e.Value, e.Default)
}

func (p *Processor) filterLocked(c ldcontext.Context) map[string]interface{} {
	return contextfilter.Filter(c, p.cfg.Privacy)
}

// pushLocked appends to the outbox, dropping and warning once per period
// if it's full, mirroring the inbox's overflow policy.
func (p *Processor) pushLocked(e outputEvent) {
	if len(p.outbox) >= p.cfg.OutboxCapacity {
		if !p.outboxDroppedInPeriod {
			p.outboxDroppedInPeriod = true
			p.cfg.Logger.Warnf("event outbox full (capacity %d), dropping events", p.cfg.OutboxCapacity)
		}
		return
	}
	p.outbox = append(p.outbox, e)
}

func (p *Processor) doFlush() {
	if p.cfg.Delivery != nil && p.cfg.Delivery.PermanentlyFailed() {
		return
	}
	p.mu.Lock()
	batch := p.outbox
	p.outbox = nil
	p.inboxDroppedMu.Lock()
	p.inboxDroppedInPeriod = false
	p.inboxDroppedMu.Unlock()
	p.outboxDroppedInPeriod = false

	snap := p.summarizer.Finish(p.cfg.Clock().UnixMilli())
	p.mu.Unlock()

	if len(snap.Flags) > 0 {
		batch = append(batch, summaryToOutputEvent(snap))
	}
	if len(batch) == 0 {
		return
	}
	if p.cfg.Delivery != nil {
		p.cfg.Delivery.Deliver(batch)
	}
}

func (p *Processor) serverTime() int64 {
	p.lastKnownServerTimeMu.Lock()
	defer p.lastKnownServerTimeMu.Unlock()
	return p.lastKnownServerTime
}

// NoteServerTime records a reconciled server-clock timestamp, used to
// compare against debugEventsUntilDate so a lagging local clock doesn't
// cause debug events to fire forever.
func (p *Processor) NoteServerTime(ms int64) {
	p.lastKnownServerTimeMu.Lock()
	defer p.lastKnownServerTimeMu.Unlock()
	if ms > p.lastKnownServerTime {
		p.lastKnownServerTime = ms
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
