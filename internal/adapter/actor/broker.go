package actor

import (
	"fmt"
	"time"

	"roomsense/internal/config"
	"roomsense/internal/core/domain"
	"roomsense/internal/core/port"
	"roomsense/internal/core/service"
	"roomsense/internal/mqtt"
	"roomsense/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const defaultReconnectDelay = 5 * time.Second

// BrokerSession is the slice of the MQTT client the actor drives: the
// publish/subscribe channel plus the session lifecycle.
type BrokerSession interface {
	port.BrokerChannel
	Connect(continuation func(error), timeout time.Duration)
	Disconnect(timeout time.Duration)
}

var _ BrokerSession = (*mqtt.Client)(nil)

// SyncSubscriptionsRequest asks the broker actor to hold one telemetry
// subscription per listed device. The directory sends it after every
// snapshot and after every reconnect; extra syncs are idempotent.
type SyncSubscriptionsRequest struct {
	DeviceIDs []string
}

type connectTick struct {
}

type connectResult struct {
	Error error
}

// BrokerActor owns the broker session lifecycle: connect with a fixed
// retry delay, resubscribe after reconnect, feed inbound telemetry into
// the document store. Connection signals arrive over the eventstream
// from the client's callback goroutines and are re-delivered through
// the actor's own mailbox, so all state changes happen sequentially.
type BrokerActor struct {
	cfg      *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	session  BrokerSession
	subs     *service.SubscriptionManager
	bridge   *service.TelemetryBridge
	es       *eventstream.EventStream
	esSub    *eventstream.Subscription
	sched    *scheduler.TimerScheduler
	logger   *zap.Logger

	// last device set requested by the directory, replayed after each
	// reconnect
	wantedDevices []string
}

func NewBrokerActor(cfg *config.Config, session BrokerSession, topics mqtt.TopicScheme, store port.DocumentStore, es *eventstream.EventStream, logger *zap.Logger) *BrokerActor {
	act := &BrokerActor{
		cfg:      cfg,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		session:  session,
		subs:     service.NewSubscriptionManager(session, topics, logger),
		bridge:   service.NewTelemetryBridge(store, topics, logger),
		es:       es,
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_BROKER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *BrokerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *BrokerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("broker@starting started")

		state.sched = scheduler.NewTimerScheduler(ctx)

		// re-deliver connection events from the callback goroutines
		// through the mailbox
		self := ctx.Self()
		root := ctx.ActorSystem().Root
		state.esSub = state.es.Subscribe(func(evt any) {
			switch evt.(type) {
			case domain.BrokerConnectedEvent, domain.BrokerConnectionLostEvent, domain.BrokerMessageEvent:
				root.Send(self, evt)
			}
		})

		ctx.Send(ctx.Self(), connectTick{})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("broker@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *BrokerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case connectTick:
		if state.session.Connected() {
			return
		}
		state.logger.Debug("broker@default connecting")
		state.session.Connect(func(err error) {
			ctx.Send(ctx.Self(), connectResult{Error: err})
		}, 10*time.Second)
	case connectResult:
		if msg.Error != nil {
			state.logger.Warn("broker@default connect failed, scheduling retry",
				zap.Error(msg.Error), zap.Duration("delay", state.reconnectDelay()))
			state.sched.RequestOnce(state.reconnectDelay(), ctx.Self(), connectTick{})
		}
		// success is signaled separately through BrokerConnectedEvent
	case domain.BrokerConnectedEvent:
		state.logger.Info("broker@default connected")
		count := state.subs.SyncAll(state.wantedDevices)
		if count > 0 {
			state.logger.Debug("broker@default resubscribed", zap.Int("devices", count))
		}
	case domain.BrokerConnectionLostEvent:
		state.logger.Warn("broker@default connection lost", zap.Error(msg.Err))
		state.subs.ClearAll()
		state.sched.RequestOnce(state.reconnectDelay(), ctx.Self(), connectTick{})
	case domain.BrokerMessageEvent:
		state.bridge.HandleMessage(msg.Topic, msg.Payload)
	case SyncSubscriptionsRequest:
		state.logger.Debug("broker@default SyncSubscriptionsRequest", zap.Int("devices", len(msg.DeviceIDs)))
		state.wantedDevices = msg.DeviceIDs
		state.subs.SyncAll(msg.DeviceIDs)
	case domain.ActorHealthRequest:
		state.logger.Debug("broker@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_BROKER,
			Healthy: true,
			State:   state.connState(),
		})
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("broker@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *BrokerActor) reconnectDelay() time.Duration {
	if state.cfg.MQTT.ReconnectDelaySecs > 0 {
		return time.Duration(state.cfg.MQTT.ReconnectDelaySecs) * time.Second
	}
	return defaultReconnectDelay
}

func (state *BrokerActor) connState() string {
	if state.session.Connected() {
		return "connected"
	}
	return "disconnected"
}

func (state *BrokerActor) stop() {
	state.logger.Debug("broker: disconnect")
	if state.esSub != nil {
		state.es.Unsubscribe(state.esSub)
		state.esSub = nil
	}
	if state.session.Connected() {
		state.session.Disconnect(500 * time.Millisecond)
	}
}
