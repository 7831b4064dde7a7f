package util

import (
	"roomsense/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:               "localhost",
			Port:               1883,
			KeepAliveSecs:      30,
			ReconnectDelaySecs: 1,
			BaseTopic:          "DATALOGGER",
			TopicScheme:        config.TopicSchemeCombined,
		},
		Store: config.StoreConfig{
			Path: ":memory:",
		},
		Port: 8080,
	}
}
