package service

import (
	"testing"

	"roomsense/internal/config"
	"roomsense/internal/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubscriptionManagerCombinedScheme(t *testing.T) {
	broker := &fakeBroker{connected: true}
	m := NewSubscriptionManager(broker, testTopics(), zap.NewNop())

	require.True(t, m.SubscribeOne("ROOM1"))

	assert.Equal(t, []string{"DATALOGGER/ROOM1/DATA"}, broker.subscribed)
	assert.True(t, m.Tracked("ROOM1"))
	assert.Equal(t, 1, m.Count())
}

func TestSubscriptionManagerSplitScheme(t *testing.T) {
	broker := &fakeBroker{connected: true}
	topics := mqtt.NewTopicScheme(config.MQTTConfig{
		BaseTopic:   "DATALOGGER",
		TopicScheme: config.TopicSchemeSplit,
	})
	m := NewSubscriptionManager(broker, topics, zap.NewNop())

	require.True(t, m.SubscribeOne("ROOM1"))

	assert.Equal(t, []string{
		"DATALOGGER/ROOM1/DATA",
		"DATALOGGER/ROOM1/STATE",
		"DATALOGGER/ROOM1/INFO",
	}, broker.subscribed)
}

func TestSubscriptionManagerIdempotent(t *testing.T) {
	broker := &fakeBroker{connected: true}
	m := NewSubscriptionManager(broker, testTopics(), zap.NewNop())

	require.True(t, m.SubscribeOne("ROOM1"))
	assert.False(t, m.SubscribeOne("ROOM1"))

	assert.Len(t, broker.subscribed, 1)
}

func TestSubscriptionManagerRequiresConnection(t *testing.T) {
	broker := &fakeBroker{connected: false}
	m := NewSubscriptionManager(broker, testTopics(), zap.NewNop())

	assert.False(t, m.SubscribeOne("ROOM1"))
	assert.False(t, m.Tracked("ROOM1"))
	assert.Empty(t, broker.subscribed)
}

func TestSubscriptionManagerSyncAll(t *testing.T) {
	broker := &fakeBroker{connected: true}
	m := NewSubscriptionManager(broker, testTopics(), zap.NewNop())

	require.True(t, m.SubscribeOne("ROOM1"))
	count := m.SyncAll([]string{"ROOM1", "ROOM2", "ROOM3"})

	assert.Equal(t, 2, count)
	assert.Equal(t, 3, m.Count())
}

func TestSubscriptionManagerClearOnConnectionLoss(t *testing.T) {
	broker := &fakeBroker{connected: true}
	m := NewSubscriptionManager(broker, testTopics(), zap.NewNop())

	m.SyncAll([]string{"ROOM1", "ROOM2"})
	require.Equal(t, 2, m.Count())

	// the broker dropped everything with the session; the local set
	// must follow so the next sync resubscribes from scratch
	m.ClearAll()
	assert.Zero(t, m.Count())

	count := m.SyncAll([]string{"ROOM1", "ROOM2"})
	assert.Equal(t, 2, count)
	assert.Len(t, broker.subscribed, 4)
}
