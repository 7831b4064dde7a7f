package actor

import (
	"errors"
	"fmt"
	"time"

	"roomsense/internal/core/domain"
	"roomsense/internal/core/port"
	"roomsense/internal/core/service"
	"roomsense/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

const backfillTimeout = 5 * time.Second

// backfillResult is tagged with the device it was queried for, so a
// result that arrives after the session switched devices can be told
// apart from the current one and discarded.
type backfillResult struct {
	deviceID string
	samples  []domain.HistorySample
	err      error
}

// HistorySessionActor serves the report-detail chart. It holds one
// sliding-window cache for the device currently on screen: opening a
// chart for a new device resets the cache and backfills it from the
// persisted history off the actor goroutine, then live device updates
// keep appending to it.
type HistorySessionActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	store    port.DocumentStore
	es       *eventstream.EventStream
	esSub    *eventstream.Subscription
	cache    *service.HistoryCache
	logger   *zap.Logger

	deviceID string
}

func NewHistorySessionActor(store port.DocumentStore, es *eventstream.EventStream, logger *zap.Logger) *HistorySessionActor {
	act := &HistorySessionActor{
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		store:    store,
		es:       es,
		cache:    service.NewHistoryCache(),
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_HISTORY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HistorySessionActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HistorySessionActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("history@starting started")

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.esSub = state.es.Subscribe(func(evt any) {
			switch evt.(type) {
			case domain.DeviceUpdatedEvent, domain.DeviceRemovedEvent:
				root.Send(self, evt)
			}
		})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("history@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HistorySessionActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.OpenChartRequest:
		state.logger.Debug("history@default OpenChartRequest",
			zap.String("device", msg.DeviceID), zap.String("kind", msg.Kind))
		if msg.DeviceID == "" {
			actorutil.ForRequest(msg).Respond(ctx, domain.ChartSeriesResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: errors.New("device id required"),
				},
			})
			return
		}
		if msg.DeviceID != state.deviceID {
			// device switch: drop the old window, reload from storage
			// and answer once the backfill lands
			state.deviceID = msg.DeviceID
			state.cache.Reset()
			state.startBackfill(ctx, msg.DeviceID)
			state.stash.Stash(ctx, msg)
			state.behavior.BecomeStacked(state.BackfillReceive)
			return
		}
		state.respondSeries(ctx, msg)
	case domain.DeviceUpdatedEvent:
		state.pushLive(msg.Device)
	case domain.DeviceRemovedEvent:
		if msg.DeviceID == state.deviceID {
			state.deviceID = ""
			state.cache.Reset()
		}
	case backfillResult:
		// late result from a backfill that already timed out; only
		// useful if it still belongs to the device on screen
		if msg.deviceID == state.deviceID && msg.err == nil && state.cache.Len() == 0 {
			state.cache.Backfill(msg.samples)
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("history@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HISTORY,
			Healthy: true,
			State:   "idle",
		})
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("history@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HistorySessionActor) BackfillReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backfillResult:
		if msg.deviceID != state.deviceID {
			state.logger.Debug("history@backfill stale result discarded",
				zap.String("device", msg.deviceID))
			return
		}
		if msg.err != nil {
			// an empty chart with live appends beats no chart
			state.logger.Error("history@backfill query failed", zap.Error(msg.err))
		} else {
			state.cache.Backfill(msg.samples)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("history@backfill stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HistorySessionActor) startBackfill(ctx actor.Context, deviceID string) {
	store := state.store
	actorutil.NewBackgroundTask(ctx, func() (*backfillResult, error) {
		docs, err := store.QueryLast("history/"+deviceID, service.HistoryCapacity)
		if err != nil {
			return &backfillResult{deviceID: deviceID, err: err}, nil
		}
		samples := make([]domain.HistorySample, 0, len(docs))
		for _, doc := range docs {
			samples = append(samples, domain.SampleFromFields(doc.Fields))
		}
		return &backfillResult{deviceID: deviceID, samples: samples}, nil
	}).WithTimeout(backfillTimeout).Recover(func(err error) backfillResult {
		return backfillResult{deviceID: deviceID, err: err}
	}).PipeTo(ctx.Self())
}

func (state *HistorySessionActor) respondSeries(ctx actor.Context, msg domain.OpenChartRequest) {
	kind := msg.Kind
	switch kind {
	case domain.ChartKindTemperature, domain.ChartKindHumidity, domain.ChartKindLight:
	default:
		kind = domain.ChartKindTemperature
	}
	labels, values := state.cache.Series(kind)
	actorutil.ForRequest(msg).Respond(ctx, domain.ChartSeriesResponse{
		DeviceID: msg.DeviceID,
		Kind:     kind,
		Labels:   labels,
		Values:   values,
	})
}

// pushLive appends the device's current sensor triple to the chart.
// Updates that carry no complete triple (state toggles, partial
// samples) are skipped, and the cache itself drops duplicates.
func (state *HistorySessionActor) pushLive(device domain.Device) {
	if device.ID != state.deviceID {
		return
	}
	if device.Temp == nil || device.Humid == nil || device.Lux == nil {
		return
	}
	state.cache.PushLive(domain.HistorySample{
		Temp:       *device.Temp,
		Humid:      *device.Humid,
		Lux:        *device.Lux,
		LastUpdate: device.LastUpdate,
	})
}

func (state *HistorySessionActor) stop() {
	if state.esSub != nil {
		state.es.Unsubscribe(state.esSub)
		state.esSub = nil
	}
}
