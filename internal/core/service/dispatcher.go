package service

import (
	"encoding/json"
	"sort"
	"time"

	"roomsense/internal/core/domain"
	"roomsense/internal/core/port"
	"roomsense/internal/mqtt"

	"go.uber.org/zap"
)

// CommandDispatcher publishes operator commands to device command
// topics and mirrors the optimistic UI state into the document store.
// Commands are fire-and-forget; after a partial failure between broker
// publish and store write, the store (not the broker) is the source of
// truth for UI state, and the device corrects it with its next report.
type CommandDispatcher struct {
	broker  port.BrokerChannel
	store   port.DocumentStore
	topics  mqtt.TopicScheme
	encoder domain.CommandEncoder
	logger  *zap.Logger
}

func NewCommandDispatcher(broker port.BrokerChannel, store port.DocumentStore, topics mqtt.TopicScheme, logger *zap.Logger) *CommandDispatcher {
	return &CommandDispatcher{
		broker: broker,
		store:  store,
		topics: topics,
		logger: logger.With(zap.String("component", "dispatcher")),
	}
}

// Send encodes and publishes one command. Returns (commandID, true) on
// success and ("", false) when the broker is not connected or the
// publish fails; it never panics and never writes the store.
func (d *CommandDispatcher) Send(deviceID, verb string, params map[string]any) (string, bool) {
	if !d.broker.Connected() {
		d.logger.Warn("command dropped, broker not connected",
			zap.String("device", deviceID), zap.String("verb", verb))
		return "", false
	}
	cmd := d.encoder.Encode(verb, params)
	payload, err := json.Marshal(cmd)
	if err != nil {
		d.logger.Error("command encode failed", zap.Error(err))
		return "", false
	}
	if err := d.broker.Publish(d.topics.CommandTopic(deviceID), payload); err != nil {
		d.logger.Error("command publish failed",
			zap.String("device", deviceID), zap.String("id", cmd.ID), zap.Error(err))
		return "", false
	}
	d.logger.Debug("command sent",
		zap.String("device", deviceID), zap.String("id", cmd.ID), zap.String("verb", verb))
	return cmd.ID, true
}

// SetPower turns one device on or off. Power-off cascades: the power
// command, then one off-command per sub-actuator, then a single atomic
// store update clearing active and every *_active flag, so an inactive
// device never shows an active sub-actuator in the read model.
func (d *CommandDispatcher) SetPower(deviceID string, on bool) bool {
	if _, ok := d.Send(deviceID, domain.CmdSetMode, domain.SetModeCommandParams(on)); !ok {
		return false
	}
	updates := map[string]any{"active": on}
	if !on {
		d.sendActuatorsOff(deviceID)
		updates["fan_active"] = false
		updates["lamp_active"] = false
		updates["ac_active"] = false
	}
	if err := d.store.Update("devices/"+deviceID, updates); err != nil {
		d.logger.Error("power state write failed", zap.String("device", deviceID), zap.Error(err))
	}
	return true
}

// SetActuator toggles one sub-actuator (fan, lamp, ac).
func (d *CommandDispatcher) SetActuator(deviceID, actuator string, on bool) bool {
	subDevice, dbKey, ok := actuatorMapping(actuator)
	if !ok {
		d.logger.Warn("unknown actuator", zap.String("actuator", actuator))
		return false
	}
	if _, sent := d.Send(deviceID, domain.CmdSetDevice, domain.SetDeviceCommandParams(subDevice, on)); !sent {
		return false
	}
	if err := d.store.Update("devices/"+deviceID, map[string]any{dbKey: on}); err != nil {
		d.logger.Error("actuator state write failed", zap.String("device", deviceID), zap.Error(err))
	}
	return true
}

// MasterSwitch applies SetPower semantics to every known device: one
// command (plus the off-cascade) per device on the broker, then one
// atomic multi-path store update covering all of them in a single
// round trip. Returns the number of devices addressed.
func (d *CommandDispatcher) MasterSwitch(on bool) (int, bool) {
	if !d.broker.Connected() {
		d.logger.Warn("master switch dropped, broker not connected")
		return 0, false
	}
	devices, err := d.store.GetChildren("devices")
	if err != nil {
		d.logger.Error("master switch device read failed", zap.Error(err))
		return 0, false
	}
	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	updates := map[string]any{}
	for _, id := range ids {
		d.Send(id, domain.CmdSetMode, domain.SetModeCommandParams(on))
		updates["devices/"+id+"/active"] = on
		if !on {
			d.sendActuatorsOff(id)
			updates["devices/"+id+"/fan_active"] = false
			updates["devices/"+id+"/lamp_active"] = false
			updates["devices/"+id+"/ac_active"] = false
		}
	}
	if len(updates) > 0 {
		if err := d.store.UpdateMulti(updates); err != nil {
			d.logger.Error("master switch store write failed", zap.Error(err))
		}
	}
	return len(ids), true
}

// SyncClock pushes the wall clock to every listed device.
func (d *CommandDispatcher) SyncClock(deviceIDs []string) int {
	now := time.Now().Unix()
	count := 0
	for _, id := range deviceIDs {
		if _, ok := d.Send(id, domain.CmdSetTimestamp, map[string]any{"timestamp": now}); ok {
			count++
		}
	}
	return count
}

// Reset restarts the command ID sequence (logout/reload).
func (d *CommandDispatcher) Reset() {
	d.encoder.Reset()
}

func (d *CommandDispatcher) sendActuatorsOff(deviceID string) {
	d.Send(deviceID, domain.CmdSetDevice, domain.SetDeviceCommandParams(domain.SubDeviceFan, false))
	d.Send(deviceID, domain.CmdSetDevice, domain.SetDeviceCommandParams(domain.SubDeviceLight, false))
	d.Send(deviceID, domain.CmdSetDevice, domain.SetDeviceCommandParams(domain.SubDeviceAC, false))
}

func actuatorMapping(actuator string) (subDevice, dbKey string, ok bool) {
	switch actuator {
	case "fan":
		return domain.SubDeviceFan, "fan_active", true
	case "lamp":
		return domain.SubDeviceLight, "lamp_active", true
	case "ac":
		return domain.SubDeviceAC, "ac_active", true
	}
	return "", "", false
}
