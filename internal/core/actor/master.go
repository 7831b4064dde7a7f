package actor

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	adactor "roomsense/internal/adapter/actor"
	"roomsense/internal/config"
	"roomsense/internal/core/domain"
	"roomsense/internal/core/port"
	"roomsense/internal/core/service"
	. "roomsense/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// BrokerActorProvider builds the broker child; swapped for a dummy in
// tests.
type BrokerActorProvider func() actor.Actor

type clockSyncTick struct {
}

type clockSyncDevices struct {
	ids []string
}

// MasterActor is the root of the tree: it supervises the broker,
// directory and history session children, routes dashboard requests to
// them and executes device commands through the dispatcher. Command
// execution stays on the master goroutine so the command ID sequence
// has a single writer.
type MasterActor struct {
	cfg      config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	store              port.DocumentStore
	dispatcher         *service.CommandDispatcher
	brokerProvider     BrokerActorProvider

	brokerActor    *actor.PID
	directoryActor *actor.PID
	historyActor   *actor.PID

	clockScheduler quartz.Scheduler
	clockCancel    context.CancelFunc

	logger *zap.Logger
}

type healthCheckResult struct {
	brokerHealthy    bool
	directoryHealthy bool
	historyHealthy   bool
	checksReceived   int
	respondTo        *actor.PID
}

func NewMasterActor(cfg config.Config, store port.DocumentStore, es *eventstream.EventStream,
	dispatcher *service.CommandDispatcher, brokerProvider BrokerActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		cfg:            cfg,
		behavior:       actor.NewBehavior(),
		stash:          &Stash{},
		eventStream:    es,
		store:          store,
		dispatcher:     dispatcher,
		brokerProvider: brokerProvider,
		logger:         ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		brokerPID, err := state.startBrokerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.brokerActor = brokerPID

		directoryPID, err := state.startDirectoryActor(ctx)
		if err != nil {
			panic(err)
		}
		state.directoryActor = directoryPID

		historyPID, err := state.startHistoryActor(ctx)
		if err != nil {
			panic(err)
		}
		state.historyActor = historyPID

		if state.cfg.ClockSync.Enable && state.cfg.ClockSync.IntervalMins > 0 {
			if err := state.startClockSync(ctx); err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.brokerActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_BROKER,
				Healthy: false,
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.directoryActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_DIRECTORY,
				Healthy: false,
			}
		})
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.historyActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_HISTORY,
				Healthy: false,
			}
		})

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetDevicesRequest:
		ctx.Forward(state.directoryActor)
	case domain.GetStatusRequest:
		ctx.Forward(state.directoryActor)
	case domain.GetProvisioningRequest:
		ctx.Forward(state.directoryActor)
	case domain.OpenChartRequest:
		ctx.Forward(state.historyActor)
	case adactor.SyncSubscriptionsRequest:
		ctx.Send(state.brokerActor, msg)
	case domain.CreateDeviceRequest:
		state.logger.Debug("master@default CreateDeviceRequest", zap.String("id", msg.ID))
		state.handleCreateDevice(ctx, msg)
	case domain.UpdateDeviceRequest:
		state.logger.Debug("master@default UpdateDeviceRequest", zap.String("id", msg.ID))
		state.handleUpdateDevice(ctx, msg)
	case domain.DeleteDeviceRequest:
		state.logger.Debug("master@default DeleteDeviceRequest", zap.String("id", msg.ID))
		state.handleDeleteDevice(ctx, msg)
	case domain.SetPowerRequest:
		state.logger.Debug("master@default SetPowerRequest", zap.String("id", msg.ID), zap.Bool("on", msg.On))
		sent := state.dispatcher.SetPower(msg.ID, msg.On)
		ForRequest(msg).Respond(ctx, domain.SetPowerResponse{Sent: sent})
	case domain.SetActuatorRequest:
		state.logger.Debug("master@default SetActuatorRequest",
			zap.String("id", msg.ID), zap.String("actuator", msg.Actuator), zap.Bool("on", msg.On))
		sent := state.dispatcher.SetActuator(msg.ID, msg.Actuator, msg.On)
		ForRequest(msg).Respond(ctx, domain.SetActuatorResponse{Sent: sent})
	case domain.DispatchCommandRequest:
		state.logger.Debug("master@default DispatchCommandRequest",
			zap.String("id", msg.ID), zap.String("verb", msg.Verb))
		cmdID, sent := state.dispatcher.Send(msg.ID, msg.Verb, msg.Params)
		ForRequest(msg).Respond(ctx, domain.DispatchCommandResponse{Sent: sent, CommandID: cmdID})
	case domain.MasterSwitchRequest:
		state.logger.Debug("master@default MasterSwitchRequest", zap.Bool("on", msg.On))
		count, ok := state.dispatcher.MasterSwitch(msg.On)
		resp := domain.MasterSwitchResponse{DeviceCount: count}
		if !ok {
			resp.ResponseError = fmt.Errorf("master switch not delivered")
		}
		ForRequest(msg).Respond(ctx, resp)
	case domain.ExportHistoryRequest:
		state.logger.Debug("master@default ExportHistoryRequest")
		state.handleExportHistory(ctx, msg)
	case clockSyncTick:
		state.logger.Debug("master@default clockSyncTick")
		store := state.store
		NewBackgroundTask(ctx, func() (*clockSyncDevices, error) {
			devices, err := store.GetChildren("devices")
			if err != nil {
				return nil, err
			}
			ids := make([]string, 0, len(devices))
			for id := range devices {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return &clockSyncDevices{ids: ids}, nil
		}).OnError(func(err error) {
			state.logger.Error("clock sync device read failed", zap.Error(err))
		}).PipeTo(ctx.Self())
	case clockSyncDevices:
		synced := state.dispatcher.SyncClock(msg.ids)
		state.logger.Debug("master@default clock synced", zap.Int("devices", synced))
	case *actor.Terminated:
		state.logger.Warn("master@default child terminated", zap.String("who", msg.Who.GetId()))
	case *actor.Stopping:
		state.stopClockSync()
	case *actor.Restarting:
		state.stopClockSync()
	default:
		state.logger.Debug("master@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// a silent child counts as unhealthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse",
			zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_BROKER:
				state.currentHealthCheck.brokerHealthy = true
			case domain.ACTOR_ID_DIRECTORY:
				state.currentHealthCheck.directoryHealthy = true
			case domain.ACTOR_ID_HISTORY:
				state.currentHealthCheck.historyHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) handleCreateDevice(ctx actor.Context, msg domain.CreateDeviceRequest) {
	id, err := config.CheckMQTTTopic(msg.ID)
	if err != nil {
		ForRequest(msg).Respond(ctx, domain.CreateDeviceResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}
	interval := msg.Interval
	if interval <= 0 {
		interval = domain.DefaultInterval
	}
	fields := map[string]any{
		"name":     msg.Name,
		"interval": interval,
		"active":   false,
		"mode":     domain.ModePeriodic,
	}
	if err := state.store.Update("devices/"+id, fields); err != nil {
		ForRequest(msg).Respond(ctx, domain.CreateDeviceResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}
	// push the interval to the board; harmless if it is not online yet,
	// it reads its config topic on boot
	_, sent := state.dispatcher.Send(id, domain.CmdSetInterval, map[string]any{"interval": interval})
	ForRequest(msg).Respond(ctx, domain.CreateDeviceResponse{CommandSent: sent})
}

func (state *MasterActor) handleUpdateDevice(ctx actor.Context, msg domain.UpdateDeviceRequest) {
	fields := map[string]any{}
	if msg.Name != "" {
		fields["name"] = msg.Name
	}
	if msg.Interval > 0 {
		fields["interval"] = msg.Interval
	}
	if len(fields) == 0 {
		ForRequest(msg).Respond(ctx, domain.UpdateDeviceResponse{})
		return
	}
	if err := state.store.Update("devices/"+msg.ID, fields); err != nil {
		ForRequest(msg).Respond(ctx, domain.UpdateDeviceResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}
	if msg.Interval > 0 {
		state.dispatcher.Send(msg.ID, domain.CmdSetInterval, map[string]any{"interval": msg.Interval})
	}
	ForRequest(msg).Respond(ctx, domain.UpdateDeviceResponse{})
}

func (state *MasterActor) handleDeleteDevice(ctx actor.Context, msg domain.DeleteDeviceRequest) {
	if err := state.store.Delete("devices/" + msg.ID); err != nil {
		ForRequest(msg).Respond(ctx, domain.DeleteDeviceResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}
	if err := state.store.Delete("history/" + msg.ID); err != nil {
		state.logger.Error("history cleanup failed", zap.String("id", msg.ID), zap.Error(err))
	}
	ForRequest(msg).Respond(ctx, domain.DeleteDeviceResponse{})
}

// handleExportHistory joins the last samples of every device with its
// current room name, newest first. Runs off the actor goroutine; the
// result goes straight back to the requester.
func (state *MasterActor) handleExportHistory(ctx actor.Context, msg domain.ExportHistoryRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	if replyTo == nil {
		return
	}
	limit := msg.PerDeviceLimit
	if limit <= 0 {
		limit = 50
	}
	store := state.store
	NewBackgroundTask(ctx, func() (*domain.ExportHistoryResponse, error) {
		devices, err := store.GetChildren("devices")
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(devices))
		for id := range devices {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var rows []domain.ExportRow
		for _, id := range ids {
			room, _ := devices[id]["name"].(string)
			docs, err := store.QueryLast("history/"+id, limit)
			if err != nil {
				return nil, err
			}
			for _, doc := range docs {
				s := domain.SampleFromFields(doc.Fields)
				rows = append(rows, domain.ExportRow{
					Room:     room,
					DeviceID: id,
					Time:     s.LastUpdate,
					Temp:     s.Temp,
					Humid:    s.Humid,
					Lux:      s.Lux,
				})
			}
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Time > rows[j].Time
		})
		return &domain.ExportHistoryResponse{Rows: rows}, nil
	}).WithTimeout(10 * time.Second).Recover(func(err error) domain.ExportHistoryResponse {
		return domain.ExportHistoryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		}
	}).PipeTo(replyTo)
}

func (state *MasterActor) startBrokerActor(ctx actor.Context) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	brokerProps := actor.PropsFromProducer(func() actor.Actor {
		return state.brokerProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(brokerProps, domain.ACTOR_ID_BROKER)
}

func (state *MasterActor) startDirectoryActor(ctx actor.Context) (*actor.PID, error) {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	directoryProps := actor.PropsFromProducer(func() actor.Actor {
		return NewDirectoryActor(state.store, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(directoryProps, domain.ACTOR_ID_DIRECTORY)
}

func (state *MasterActor) startHistoryActor(ctx actor.Context) (*actor.PID, error) {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	historyProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHistorySessionActor(state.store, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(historyProps, domain.ACTOR_ID_HISTORY)
}

func (state *MasterActor) startClockSync(ctx actor.Context) error {
	self := ctx.Self()
	root := ctx.ActorSystem().Root

	var quartzCtx context.Context
	quartzCtx, state.clockCancel = context.WithCancel(context.Background())
	state.clockScheduler = quartz.NewStdScheduler()
	state.clockScheduler.Start(quartzCtx)

	tickJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		root.Send(self, clockSyncTick{})
		return true, nil
	})
	interval := time.Duration(state.cfg.ClockSync.IntervalMins) * time.Minute
	return state.clockScheduler.ScheduleJob(
		quartz.NewJobDetail(tickJob, quartz.NewJobKey("clock_sync")),
		quartz.NewSimpleTrigger(interval))
}

func (state *MasterActor) stopClockSync() {
	if state.clockScheduler != nil {
		state.clockScheduler.Stop()
		state.clockScheduler = nil
	}
	if state.clockCancel != nil {
		state.clockCancel()
		state.clockCancel = nil
	}
}

func (state *healthCheckResult) reset() {
	state.brokerHealthy = false
	state.directoryHealthy = false
	state.historyHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.brokerHealthy && state.directoryHealthy && state.historyHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
