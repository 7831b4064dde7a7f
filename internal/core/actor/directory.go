package actor

import (
	"fmt"
	"reflect"
	"sort"

	adactor "roomsense/internal/adapter/actor"
	"roomsense/internal/core/domain"
	"roomsense/internal/core/port"
	"roomsense/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type directorySnapshot struct {
	children map[string]map[string]any
}

// DirectoryActor mirrors the devices/ subtree into an in-memory roster.
// Every committed store change arrives as a full snapshot through the
// mailbox; the actor diffs it against the previous roster, publishes
// per-device change events and keeps the broker's subscription set in
// step with the device list.
type DirectoryActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	store    port.DocumentStore
	es       *eventstream.EventStream
	esSub    *eventstream.Subscription
	logger   *zap.Logger

	cancelWatch func()

	devices         map[string]domain.Device
	sorted          []domain.Device
	brokerConnected bool
}

func NewDirectoryActor(store port.DocumentStore, es *eventstream.EventStream, logger *zap.Logger) *DirectoryActor {
	act := &DirectoryActor{
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		store:    store,
		es:       es,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_DIRECTORY, logger),
		devices:  map[string]domain.Device{},
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *DirectoryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DirectoryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("directory@starting started")

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.esSub = state.es.Subscribe(func(evt any) {
			switch evt.(type) {
			case domain.BrokerConnectedEvent, domain.BrokerConnectionLostEvent:
				root.Send(self, evt)
			}
		})

		// watch callbacks run on the store writer's goroutine; hand the
		// snapshot to the mailbox and return immediately
		state.cancelWatch = state.store.Watch("devices", func(children map[string]map[string]any) {
			root.Send(self, directorySnapshot{children: children})
		})
	case directorySnapshot:
		// initial snapshot: roster is ready, start serving
		state.applySnapshot(ctx, msg.children)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("directory@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DirectoryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case directorySnapshot:
		state.applySnapshot(ctx, msg.children)
	case domain.BrokerConnectedEvent:
		state.brokerConnected = true
		state.requestSubscriptionSync(ctx)
	case domain.BrokerConnectionLostEvent:
		state.brokerConnected = false
	case domain.GetDevicesRequest:
		state.logger.Debug("directory@default GetDevicesRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.GetDevicesResponse{
			Devices:  append([]domain.Device(nil), state.sorted...),
			WifiSSID: state.wifiSSID(),
		})
	case domain.GetStatusRequest:
		state.logger.Debug("directory@default GetStatusRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.GetStatusResponse{
			BrokerConnected: state.brokerConnected,
			StoreReady:      true,
			WifiSSID:        state.wifiSSID(),
			DeviceCount:     len(state.sorted),
			SystemOn:        state.anyActive(),
		})
	case domain.GetProvisioningRequest:
		state.logger.Debug("directory@default GetProvisioningRequest")
		var pending []domain.ProvisioningInfo
		for _, d := range state.sorted {
			if d.SetupMode {
				pending = append(pending, domain.ProvisioningInfo{
					ID:     d.ID,
					Name:   d.Name,
					APSSID: d.APSSID,
					APIP:   d.APIP,
				})
			}
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.GetProvisioningResponse{Devices: pending})
	case domain.ActorHealthRequest:
		state.logger.Debug("directory@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DIRECTORY,
			Healthy: true,
			State:   "watching",
		})
	case *actor.Restarting, *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("directory@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DirectoryActor) applySnapshot(ctx actor.Context, children map[string]map[string]any) {
	next := make(map[string]domain.Device, len(children))
	for id, fields := range children {
		next[id] = domain.DeviceFromFields(id, fields)
	}

	for id, device := range next {
		prev, known := state.devices[id]
		if !known || !reflect.DeepEqual(prev, device) {
			state.es.Publish(domain.DeviceUpdatedEvent{Device: device})
		}
	}
	for id := range state.devices {
		if _, still := next[id]; !still {
			state.es.Publish(domain.DeviceRemovedEvent{DeviceID: id})
		}
	}

	state.devices = next
	state.sorted = state.sorted[:0]
	for _, d := range next {
		state.sorted = append(state.sorted, d)
	}
	sort.Slice(state.sorted, func(i, j int) bool {
		return state.sorted[i].ID < state.sorted[j].ID
	})

	state.logger.Debug("directory snapshot applied", zap.Int("devices", len(state.sorted)))
	state.requestSubscriptionSync(ctx)
}

// requestSubscriptionSync routes the device list to the broker actor
// through the parent, which owns both children.
func (state *DirectoryActor) requestSubscriptionSync(ctx actor.Context) {
	if ctx.Parent() == nil {
		return
	}
	ids := make([]string, 0, len(state.sorted))
	for _, d := range state.sorted {
		ids = append(ids, d.ID)
	}
	ctx.Send(ctx.Parent(), adactor.SyncSubscriptionsRequest{DeviceIDs: ids})
}

// wifiSSID reports the network name of the first device that knows one,
// in roster order. The dashboard shows it as a single badge.
func (state *DirectoryActor) wifiSSID() string {
	for _, d := range state.sorted {
		if d.WifiSSID != "" {
			return d.WifiSSID
		}
	}
	return ""
}

func (state *DirectoryActor) anyActive() bool {
	for _, d := range state.sorted {
		if d.Active {
			return true
		}
	}
	return false
}

func (state *DirectoryActor) stop() {
	if state.cancelWatch != nil {
		state.cancelWatch()
		state.cancelWatch = nil
	}
	if state.esSub != nil {
		state.es.Unsubscribe(state.esSub)
		state.esSub = nil
	}
}
