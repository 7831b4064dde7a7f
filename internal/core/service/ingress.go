package service

import (
	"encoding/json"
	"fmt"
	"time"

	"roomsense/internal/core/domain"
	"roomsense/internal/core/port"
	"roomsense/internal/mqtt"

	"go.uber.org/zap"
)

// TelemetryBridge turns raw broker messages into document store writes.
// Malformed topics and payloads are logged and dropped; one bad message
// must never affect other devices or the session.
type TelemetryBridge struct {
	store  port.DocumentStore
	topics mqtt.TopicScheme
	logger *zap.Logger
	now    func() time.Time
}

func NewTelemetryBridge(store port.DocumentStore, topics mqtt.TopicScheme, logger *zap.Logger) *TelemetryBridge {
	return &TelemetryBridge{
		store:  store,
		topics: topics,
		logger: logger.With(zap.String("component", "ingress")),
		now:    time.Now,
	}
}

// WithClock overrides the receipt-time source. Tests only.
func (b *TelemetryBridge) WithClock(now func() time.Time) *TelemetryBridge {
	b.now = now
	return b
}

// HandleMessage classifies, normalizes and persists one inbound
// message.
func (b *TelemetryBridge) HandleMessage(topic string, payload []byte) {
	deviceID, class, combined, ok := b.topics.ParseTelemetry(topic)
	if !ok {
		b.logger.Warn("unparseable topic, message dropped", zap.String("topic", topic))
		return
	}
	msgs, err := b.Decode(deviceID, class, combined, payload)
	if err != nil {
		b.logger.Warn("malformed payload, message dropped",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	for _, msg := range msgs {
		if err := b.Persist(msg); err != nil {
			b.logger.Error("telemetry persist failed",
				zap.String("device", msg.Device()),
				zap.String("class", msg.Class().String()),
				zap.Error(err))
		}
	}
}

// Decode resolves a raw payload into explicit message classes. A
// combined-topic payload may yield one message per class it carries;
// a split-topic payload yields at most the message of its own class,
// so no class can smuggle fields belonging to another.
func (b *TelemetryBridge) Decode(deviceID string, class domain.MessageClass, combined bool, payload []byte) ([]domain.InboundMessage, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	ts := b.resolveTimestamp(raw)

	var msgs []domain.InboundMessage
	appendClass := func(c domain.MessageClass) {
		switch c {
		case domain.ClassSensorData:
			if m := decodeSensorData(deviceID, raw, ts); m != nil {
				msgs = append(msgs, *m)
			}
		case domain.ClassState:
			if m := decodeState(deviceID, raw); m != nil {
				msgs = append(msgs, *m)
			}
		case domain.ClassInfo:
			if m := decodeInfo(deviceID, raw); m != nil {
				msgs = append(msgs, *m)
			}
		}
	}
	if combined {
		appendClass(domain.ClassSensorData)
		appendClass(domain.ClassState)
		appendClass(domain.ClassInfo)
	} else {
		appendClass(class)
	}
	return msgs, nil
}

// Persist merge-updates the device record with the message's fields.
// A complete sensor sample is additionally appended to the device's
// history log.
func (b *TelemetryBridge) Persist(msg domain.InboundMessage) error {
	devicePath := "devices/" + msg.Device()
	switch m := msg.(type) {
	case domain.SensorDataMessage:
		updates := map[string]any{"last_update": m.Timestamp}
		if m.Temp != nil {
			updates["temp"] = *m.Temp
		}
		if m.Humid != nil {
			updates["humid"] = *m.Humid
		}
		if m.Lux != nil {
			updates["lux"] = *m.Lux
		}
		if err := b.store.Update(devicePath, updates); err != nil {
			return err
		}
		if m.Complete() {
			_, err := b.store.Push("history/"+m.DeviceID, map[string]any{
				"temp":        *m.Temp,
				"humid":       *m.Humid,
				"lux":         *m.Lux,
				"last_update": m.Timestamp,
			})
			return err
		}
		return nil
	case domain.StateMessage:
		updates := map[string]any{}
		if m.Active != nil {
			updates["active"] = *m.Active
		}
		if m.Mode != nil {
			updates["mode"] = *m.Mode
		}
		if m.Interval != nil {
			updates["interval"] = *m.Interval
		}
		if m.Fan != nil {
			updates["fan_active"] = *m.Fan
		}
		if m.Lamp != nil {
			updates["lamp_active"] = *m.Lamp
		}
		if m.AC != nil {
			updates["ac_active"] = *m.AC
		}
		if len(updates) == 0 {
			return nil
		}
		return b.store.Update(devicePath, updates)
	case domain.InfoMessage:
		updates := map[string]any{}
		if m.WifiSSID != nil {
			updates["wifi_ssid"] = *m.WifiSSID
		}
		if m.IPAddress != nil {
			updates["ip_address"] = *m.IPAddress
		}
		if m.MQTTBroker != nil {
			updates["mqtt_broker"] = *m.MQTTBroker
		}
		if m.Firmware != nil {
			updates["firmware"] = *m.Firmware
		}
		if m.SetupMode != nil {
			updates["setup_mode"] = *m.SetupMode
		}
		if m.APSSID != nil {
			updates["ap_ssid"] = *m.APSSID
		}
		if m.APIP != nil {
			updates["ap_ip"] = *m.APIP
		}
		if len(updates) == 0 {
			return nil
		}
		return b.store.Update(devicePath, updates)
	}
	return fmt.Errorf("unhandled message class %s", msg.Class())
}

// resolveTimestamp prefers the device clock (epoch seconds on the
// wire, stored as milliseconds) and falls back to receipt time. An
// unsynchronized device clock can therefore produce out-of-order
// history entries; that is the documented policy, not reconciled here.
func (b *TelemetryBridge) resolveTimestamp(raw map[string]any) int64 {
	if v, ok := rawNum(raw, "timestamp"); ok && v > 0 {
		return int64(v) * 1000
	}
	return b.now().UnixMilli()
}

func decodeSensorData(deviceID string, raw map[string]any, ts int64) *domain.SensorDataMessage {
	m := domain.SensorDataMessage{DeviceID: deviceID, Timestamp: ts}
	// the sensor vocabulary changed between firmware generations
	if v, ok := rawNumAny(raw, "temp", "temperature"); ok {
		m.Temp = &v
	}
	if v, ok := rawNumAny(raw, "humid", "humidity"); ok {
		m.Humid = &v
	}
	if v, ok := rawNumAny(raw, "lux", "light"); ok {
		m.Lux = &v
	}
	if m.Temp == nil && m.Humid == nil && m.Lux == nil {
		return nil
	}
	return &m
}

func decodeState(deviceID string, raw map[string]any) *domain.StateMessage {
	m := domain.StateMessage{DeviceID: deviceID}
	empty := true
	if v, ok := rawBool(raw, "active"); ok {
		m.Active = &v
		empty = false
	}
	if v, ok := rawMode(raw); ok {
		m.Mode = &v
		empty = false
	}
	if v, ok := rawNum(raw, "interval"); ok {
		iv := int(v)
		m.Interval = &iv
		empty = false
	}
	if v, ok := rawBoolAny(raw, "fan_active", "fan"); ok {
		m.Fan = &v
		empty = false
	}
	if v, ok := rawBoolAny(raw, "lamp_active", "lamp"); ok {
		m.Lamp = &v
		empty = false
	}
	if v, ok := rawBoolAny(raw, "ac_active", "ac"); ok {
		m.AC = &v
		empty = false
	}
	if empty {
		return nil
	}
	return &m
}

func decodeInfo(deviceID string, raw map[string]any) *domain.InfoMessage {
	m := domain.InfoMessage{DeviceID: deviceID}
	empty := true
	if v, ok := rawStr(raw, "wifi_ssid"); ok {
		m.WifiSSID = &v
		empty = false
	}
	if v, ok := rawStrAny(raw, "ip_address", "ip"); ok {
		m.IPAddress = &v
		empty = false
	}
	if v, ok := rawStr(raw, "mqtt_broker"); ok {
		m.MQTTBroker = &v
		empty = false
	}
	if v, ok := rawStr(raw, "firmware"); ok {
		m.Firmware = &v
		empty = false
	}
	if v, ok := rawBool(raw, "setup_mode"); ok {
		m.SetupMode = &v
		empty = false
	}
	if v, ok := rawStr(raw, "ap_ssid"); ok {
		m.APSSID = &v
		empty = false
	}
	if v, ok := rawStr(raw, "ap_ip"); ok {
		m.APIP = &v
		empty = false
	}
	if empty {
		return nil
	}
	return &m
}

func rawNum(raw map[string]any, key string) (float64, bool) {
	switch v := raw[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func rawNumAny(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := rawNum(raw, k); ok {
			return v, true
		}
	}
	return 0, false
}

func rawBool(raw map[string]any, key string) (bool, bool) {
	switch v := raw[key].(type) {
	case bool:
		return v, true
	case float64:
		// firmware reports switches as 0/1
		return v != 0, true
	}
	return false, false
}

func rawBoolAny(raw map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		if v, ok := rawBool(raw, k); ok {
			return v, true
		}
	}
	return false, false
}

func rawStr(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func rawStrAny(raw map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := rawStr(raw, k); ok {
			return v, true
		}
	}
	return "", false
}

func rawMode(raw map[string]any) (string, bool) {
	switch v := raw["mode"].(type) {
	case string:
		if v != "" {
			return v, true
		}
	case float64:
		if v != 0 {
			return domain.ModePeriodic, true
		}
		return domain.ModeManual, true
	}
	return "", false
}
