package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := CheckMQTTTopic("datalogger")
	require.NoError(t, err)
	assert.Equal(t, "DATALOGGER", topic)

	topic, err = CheckMQTTTopic("ROOM_1")
	require.NoError(t, err)
	assert.Equal(t, "ROOM_1", topic)

	_, err = CheckMQTTTopic("bad/topic")
	assert.Error(t, err)

	_, err = CheckMQTTTopic("")
	assert.Error(t, err)
}

func TestCheckTopicScheme(t *testing.T) {
	scheme, err := CheckTopicScheme("Combined")
	require.NoError(t, err)
	assert.Equal(t, TopicSchemeCombined, scheme)

	scheme, err = CheckTopicScheme("split")
	require.NoError(t, err)
	assert.Equal(t, TopicSchemeSplit, scheme)

	_, err = CheckTopicScheme("mixed")
	assert.Error(t, err)
}
