package mqtt

import (
	"testing"

	"roomsense/internal/config"
	"roomsense/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func combinedScheme() TopicScheme {
	return NewTopicScheme(config.MQTTConfig{BaseTopic: "DATALOGGER", TopicScheme: config.TopicSchemeCombined})
}

func splitScheme() TopicScheme {
	return NewTopicScheme(config.MQTTConfig{BaseTopic: "DATALOGGER", TopicScheme: config.TopicSchemeSplit})
}

func TestTopicBuilders(t *testing.T) {
	s := combinedScheme()

	assert.Equal(t, "DATALOGGER/ROOM1/CMD", s.CommandTopic("ROOM1"))
	assert.Equal(t, "DATALOGGER/ROOM1/DATA", s.DataTopic("ROOM1"))
	assert.Equal(t, "DATALOGGER/ROOM1/STATE", s.StateTopic("ROOM1"))
	assert.Equal(t, "DATALOGGER/ROOM1/INFO", s.InfoTopic("ROOM1"))
}

func TestDeviceTopicsPerScheme(t *testing.T) {
	assert.Equal(t, []string{"DATALOGGER/ROOM1/DATA"}, combinedScheme().DeviceTopics("ROOM1"))
	assert.Equal(t, []string{
		"DATALOGGER/ROOM1/DATA",
		"DATALOGGER/ROOM1/STATE",
		"DATALOGGER/ROOM1/INFO",
	}, splitScheme().DeviceTopics("ROOM1"))
}

func TestParseTelemetryCombined(t *testing.T) {
	deviceID, class, combined, ok := combinedScheme().ParseTelemetry("DATALOGGER/ROOM1/DATA")

	require.True(t, ok)
	assert.Equal(t, "ROOM1", deviceID)
	assert.Equal(t, domain.ClassSensorData, class)
	assert.True(t, combined)
}

func TestParseTelemetrySplit(t *testing.T) {
	s := splitScheme()

	_, class, combined, ok := s.ParseTelemetry("DATALOGGER/ROOM1/DATA")
	require.True(t, ok)
	assert.Equal(t, domain.ClassSensorData, class)
	assert.False(t, combined)

	_, class, _, ok = s.ParseTelemetry("DATALOGGER/ROOM1/STATE")
	require.True(t, ok)
	assert.Equal(t, domain.ClassState, class)

	_, class, _, ok = s.ParseTelemetry("DATALOGGER/ROOM1/INFO")
	require.True(t, ok)
	assert.Equal(t, domain.ClassInfo, class)
}

func TestParseTelemetryRejects(t *testing.T) {
	s := combinedScheme()

	cases := []string{
		"DATALOGGER/ROOM1/CMD",
		"OTHER/ROOM1/DATA",
		"DATALOGGER/ROOM1",
		"DATALOGGER/ROOM1/DATA/EXTRA",
		"DATALOGGER//DATA",
		"DATALOGGER/ROOM1/UNKNOWN",
	}
	for _, topic := range cases {
		_, _, _, ok := s.ParseTelemetry(topic)
		assert.False(t, ok, topic)
	}
}
