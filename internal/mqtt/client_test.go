package mqtt

import (
	"testing"

	"roomsense/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestBrokerURLTCP(t *testing.T) {

	assert := assert.New(t)

	url := brokerURL(config.MQTTConfig{Host: "broker.local", Port: 1883})
	assert.Equal("tcp://broker.local:1883", url)

	url = brokerURL(config.MQTTConfig{Host: "broker.local", Port: 8883, UseTLS: true})
	assert.Equal("ssl://broker.local:8883", url)
}

func TestBrokerURLWebsocket(t *testing.T) {

	assert := assert.New(t)

	url := brokerURL(config.MQTTConfig{Host: "broker.local", Port: 8000, Path: "/mqtt"})
	assert.Equal("ws://broker.local:8000/mqtt", url)

	url = brokerURL(config.MQTTConfig{Host: "broker.local", Port: 8884, Path: "/mqtt", UseTLS: true})
	assert.Equal("wss://broker.local:8884/mqtt", url)
}

func TestOptsFromConfig(t *testing.T) {

	assert := assert.New(t)

	cfg := &config.Config{MQTT: config.MQTTConfig{
		Host:          "broker.local",
		Port:          1883,
		Username:      "user",
		Password:      "pass",
		KeepAliveSecs: 30,
	}}
	opts := OptsFromConfig(cfg)

	assert.Equal("user", opts.Username)
	assert.Equal("pass", opts.Password)
	// the broker actor owns the reconnect policy
	assert.False(opts.AutoReconnect)
	assert.False(opts.ConnectRetry)
}
