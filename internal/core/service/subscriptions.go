package service

import (
	"roomsense/internal/core/port"
	"roomsense/internal/mqtt"

	"go.uber.org/zap"
)

// SubscriptionManager keeps exactly one broker subscription per known
// device. Process-local, single-writer; owned by the broker actor. The
// tracked set is cleared wholesale on connection loss so that the next
// SyncAll after reconnect resubscribes everything instead of trusting
// subscriptions the broker no longer holds.
type SubscriptionManager struct {
	broker  port.BrokerChannel
	topics  mqtt.TopicScheme
	tracked map[string]struct{}
	logger  *zap.Logger
}

func NewSubscriptionManager(broker port.BrokerChannel, topics mqtt.TopicScheme, logger *zap.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		broker:  broker,
		topics:  topics,
		tracked: map[string]struct{}{},
		logger:  logger.With(zap.String("component", "subscriptions")),
	}
}

// SubscribeOne subscribes the device's telemetry topics if the channel
// is connected and the device is not already tracked. Idempotent.
func (m *SubscriptionManager) SubscribeOne(deviceID string) bool {
	if deviceID == "" || !m.broker.Connected() {
		return false
	}
	if _, ok := m.tracked[deviceID]; ok {
		return false
	}
	for _, topic := range m.topics.DeviceTopics(deviceID) {
		if err := m.broker.Subscribe(topic); err != nil {
			m.logger.Error("subscribe failed", zap.String("topic", topic), zap.Error(err))
			return false
		}
	}
	m.tracked[deviceID] = struct{}{}
	m.logger.Debug("subscribed", zap.String("device", deviceID))
	return true
}

// SyncAll subscribes every device not already tracked and returns how
// many new subscriptions were made.
func (m *SubscriptionManager) SyncAll(deviceIDs []string) int {
	count := 0
	for _, id := range deviceIDs {
		if m.SubscribeOne(id) {
			count++
		}
	}
	return count
}

// ClearAll forgets every tracked device. Called on connection loss,
// when the broker has implicitly dropped all subscriptions.
func (m *SubscriptionManager) ClearAll() {
	m.tracked = map[string]struct{}{}
}

func (m *SubscriptionManager) Tracked(deviceID string) bool {
	_, ok := m.tracked[deviceID]
	return ok
}

func (m *SubscriptionManager) Count() int {
	return len(m.tracked)
}
