package flagship

import (
	"context"
	"fmt"
	"time"

	"github.com/flagshipsdk/flagship-go/internal/datasource"
	"github.com/flagshipsdk/flagship-go/internal/datastore"
	"github.com/flagshipsdk/flagship-go/internal/eval"
	"github.com/flagshipsdk/flagship-go/internal/transport"
	"github.com/flagshipsdk/flagship-go/interfaces"
	"github.com/flagshipsdk/flagship-go/ldcontext"
	"github.com/flagshipsdk/flagship-go/ldevents"
	"github.com/flagshipsdk/flagship-go/ldlog"
	"github.com/flagshipsdk/flagship-go/ldreason"
	"github.com/flagshipsdk/flagship-go/ldvalue"
)

// Client is the SDK's entry point: it evaluates flags against a
// continuously-synchronized store and records evaluation/custom events
// for delivery.
type Client struct {
	cfg Config

	store  *datastore.Store
	status *interfaces.DataSourceStatusManager

	streaming *datasource.StreamingDataSource
	polling   *datasource.PollingDataSource

	processor *ldevents.Processor
	delivery  *ldevents.DeliveryManager

	loggers ldlog.Loggers

	closed bool
}

// MakeClient constructs a Client and starts its background synchronization
// and event-delivery tasks. It returns once construction succeeds; callers
// that need to wait for initial data should poll Initialized() or watch
// DataSourceStatusProvider().
func MakeClient(cfg Config) (*Client, error) {
	if cfg.SDKKey == "" && !cfg.Offline {
		return nil, fmt.Errorf("flagship: SDKKey is required unless Offline is set")
	}
	cfg = cfg.withDefaults()

	loggers := ldlog.DefaultLoggers()
	store := datastore.New()
	status := interfaces.NewDataSourceStatusManager(time.Now())

	c := &Client{
		cfg:     cfg,
		store:   store,
		status:  status,
		loggers: loggers,
	}

	if cfg.Offline {
		loggers.General.Infof("starting in offline mode, no network activity")
		status.SetState(interfaces.DataSourceStateOff, time.Now())
		return c, nil
	}

	httpClient := cfg.HTTP.buildClient()
	authHeader := cfg.SDKKey

	switch cfg.DataSource.Mode {
	case ModePolling:
		requester := transport.NewHTTPRequester(httpClient, cfg.ServiceEndpoints.Polling, authHeader)
		c.polling = datasource.NewPollingDataSource(store, status, requester, cfg.DataSource.PollInterval)
		c.polling.Start(context.Background())
	default:
		connector := func(ctx context.Context) (datasource.StreamClient, error) {
			return transport.ConnectStream(ctx, httpClient, cfg.ServiceEndpoints.Streaming, authHeader)
		}
		c.streaming = datasource.NewStreamingDataSource(store, status, connector)
		c.streaming.Start(context.Background())
	}

	if cfg.Events.Enabled {
		c.delivery = ldevents.NewDeliveryManager(ldevents.DeliveryConfig{
			EventsURI:    cfg.ServiceEndpoints.Events,
			AuthHeader:   authHeader,
			Client:       httpClient,
			Workers:      cfg.Events.FlushWorkers,
			Logger:       loggers.Events,
			OnServerTime: func(ms int64) { c.processor.NoteServerTime(ms) },
		})
		c.processor = ldevents.NewProcessor(ldevents.Config{
			InboxCapacity:  cfg.Events.Capacity,
			FlushInterval:  cfg.Events.FlushInterval,
			FlushWorkers:   cfg.Events.FlushWorkers,
			Privacy:        cfg.Events.toFilterConfig(),
			Delivery:       c.delivery,
			Logger:         loggers.Events,
		})
	}

	return c, nil
}

// Initialized reports whether the data store has received its first full
// data set.
func (c *Client) Initialized() bool {
	return c.store.Initialized()
}

// DataSourceStatusProvider exposes observable data-source state.
func (c *Client) DataSourceStatusProvider() interfaces.DataSourceStatusProvider {
	return c.status
}

// BoolVariation evaluates a boolean flag.
func (c *Client) BoolVariation(ctx ldcontext.Context, key string, defaultValue bool) bool {
	return c.variation(ctx, key, ldvalue.Bool(defaultValue), false).Value.BoolValue()
}

// StringVariation evaluates a string flag.
func (c *Client) StringVariation(ctx ldcontext.Context, key string, defaultValue string) string {
	return c.variation(ctx, key, ldvalue.String(defaultValue), false).Value.StringValue()
}

// IntVariation evaluates a flag as an integer.
func (c *Client) IntVariation(ctx ldcontext.Context, key string, defaultValue int) int {
	return int(c.variation(ctx, key, ldvalue.Number(float64(defaultValue)), false).Value.NumberValue())
}

// FloatVariation evaluates a flag as a float64.
func (c *Client) FloatVariation(ctx ldcontext.Context, key string, defaultValue float64) float64 {
	return c.variation(ctx, key, ldvalue.Number(defaultValue), false).Value.NumberValue()
}

// JSONVariation evaluates a flag as an arbitrary JSON value.
func (c *Client) JSONVariation(ctx ldcontext.Context, key string, defaultValue ldvalue.Value) ldvalue.Value {
	return c.variation(ctx, key, defaultValue, false).Value
}

// BoolVariationDetail evaluates a boolean flag and returns the full reason.
func (c *Client) BoolVariationDetail(ctx ldcontext.Context, key string, defaultValue bool) ldreason.Detail {
	return c.variation(ctx, key, ldvalue.Bool(defaultValue), true)
}

// StringVariationDetail evaluates a string flag and returns the full reason.
func (c *Client) StringVariationDetail(ctx ldcontext.Context, key string, defaultValue string) ldreason.Detail {
	return c.variation(ctx, key, ldvalue.String(defaultValue), true)
}

// IntVariationDetail evaluates an integer flag and returns the full reason.
func (c *Client) IntVariationDetail(ctx ldcontext.Context, key string, defaultValue int) ldreason.Detail {
	return c.variation(ctx, key, ldvalue.Number(float64(defaultValue)), true)
}

// FloatVariationDetail evaluates a float flag and returns the full reason.
func (c *Client) FloatVariationDetail(ctx ldcontext.Context, key string, defaultValue float64) ldreason.Detail {
	return c.variation(ctx, key, ldvalue.Number(defaultValue), true)
}

// JSONVariationDetail evaluates a JSON flag and returns the full reason.
func (c *Client) JSONVariationDetail(ctx ldcontext.Context, key string, defaultValue ldvalue.Value) ldreason.Detail {
	return c.variation(ctx, key, defaultValue, true)
}

func (c *Client) variation(ctx ldcontext.Context, key string, defaultValue ldvalue.Value, requireFullEvent bool) ldreason.Detail {
	now := time.Now().UnixMilli()

	flag, ok := c.store.GetFlag(key)
	if !ok {
		detail := ldreason.NewDetailWithoutVariation(defaultValue, ldreason.NewErrorReason(ldreason.ErrorKindFlagNotFound))
		c.sendEvaluationEvent(now, ctx, key, 0, false, 0, false, defaultValue, defaultValue, detail.Reason, false, false, nil, requireFullEvent, "", false)
		return detail
	}

	var prereqEvents []ldevents.EvaluationInput
	sink := func(pe eval.PrerequisiteEvent) {
		prereqEvents = append(prereqEvents, ldevents.EvaluationInput{
			CreationDate: now,
			Context:      ctx,
			FlagKey:      pe.Key,
			FlagVersion:  pe.Flag.Version,
			HasVersion:   true,
			Variation:    pe.Detail.VariationIndex,
			HasVariation: pe.Detail.HasVariation,
			Value:        pe.Detail.Value,
			Default:      ldvalue.Null,
			Reason:       pe.Detail.Reason,
			TrackEvents:  pe.Flag.TrackEvents,
			TrackEventsFallthrough: pe.Flag.TrackEventsFallthrough,
			DebugEventsUntilDate:   pe.Flag.DebugEventsUntilDate,
			PrereqOf:               key,
			HasPrereqOf:            true,
		})
	}

	detail := eval.Evaluate(flag, ctx, c.store.GetFlag, c.store.GetSegment, defaultValue, sink)

	for _, pe := range prereqEvents {
		c.send(pe)
	}
	c.sendEvaluationEvent(now, ctx, key, flag.Version, true, detail.VariationIndex, detail.HasVariation, detail.Value, defaultValue, detail.Reason, flag.TrackEvents, flag.TrackEventsFallthrough, flag.DebugEventsUntilDate, requireFullEvent, "", false)
	return detail
}

func (c *Client) sendEvaluationEvent(now int64, ctx ldcontext.Context, key string, version int, hasVersion bool, variation int, hasVariation bool, value, defaultValue ldvalue.Value, reason ldreason.Reason, trackEvents, trackEventsFallthrough bool, debugUntil *int64, requireFullEvent bool, prereqOf string, hasPrereqOf bool) {
	c.send(ldevents.EvaluationInput{
		CreationDate:           now,
		Context:                ctx,
		FlagKey:                key,
		FlagVersion:            version,
		HasVersion:             hasVersion,
		Variation:              variation,
		HasVariation:           hasVariation,
		Value:                  value,
		Default:                defaultValue,
		Reason:                 reason,
		TrackEvents:            trackEvents,
		TrackEventsFallthrough: trackEventsFallthrough,
		DebugEventsUntilDate:   debugUntil,
		RequireFullEvent:       requireFullEvent,
		PrereqOf:               prereqOf,
		HasPrereqOf:            hasPrereqOf,
	})
}

func (c *Client) send(event ldevents.InputEvent) {
	if c.processor == nil {
		return
	}
	c.processor.Send(event)
}

// Identify records that a context was seen, independent of any evaluation.
func (c *Client) Identify(ctx ldcontext.Context) {
	c.send(ldevents.IdentifyInput{CreationDate: time.Now().UnixMilli(), Context: ctx})
}

// TrackEvent records a custom application event, optionally carrying a
// numeric metric value for experimentation.
func (c *Client) TrackEvent(ctx ldcontext.Context, key string, data ldvalue.Value, hasData bool, metricValue *float64) {
	c.send(ldevents.CustomInput{
		CreationDate: time.Now().UnixMilli(),
		Context:      ctx,
		Key:          key,
		Data:         data,
		HasData:      hasData,
		MetricValue:  metricValue,
	})
}

// AllFlagsState evaluates every known flag against ctx and returns a
// snapshot suitable for bootstrapping a client-side SDK.
func (c *Client) AllFlagsState(ctx ldcontext.Context) map[string]ldreason.Detail {
	flags := c.store.AllFlags()
	result := make(map[string]ldreason.Detail, len(flags))
	for key, flag := range flags {
		if flag.Deleted {
			continue
		}
		result[key] = eval.Evaluate(flag, ctx, c.store.GetFlag, c.store.GetSegment, ldvalue.Null, nil)
	}
	return result
}

// Flush triggers an out-of-band event delivery.
func (c *Client) Flush() {
	if c.processor != nil {
		c.processor.Flush()
	}
}

// Close stops background synchronization and event delivery, flushing
// whatever remains queued.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.loggers.General.Infof("closing client")
	if c.streaming != nil {
		c.streaming.Shutdown(nil)
	}
	if c.polling != nil {
		c.polling.Shutdown(nil)
	}
	if c.processor != nil {
		c.processor.Close()
	}
	return nil
}
