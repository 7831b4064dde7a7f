package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Topic generation of the device firmware. Older boards publish every
// message class on a single DATA topic; newer ones split sensor data,
// state and info onto separate topics.
const (
	TopicSchemeCombined = "combined"
	TopicSchemeSplit    = "split"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig  `mapstructure:"mqtt"`
	Store    StoreConfig `mapstructure:"store"`

	ClockSync ClockSyncConfig `mapstructure:"clock_sync"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host                 string
	Port                 int
	Path                 string
	UseTLS               bool `mapstructure:"use_tls"`
	Username             string
	Password             string
	KeepAliveSecs        uint   `mapstructure:"keep_alive_secs"`
	ReconnectDelaySecs   uint   `mapstructure:"reconnect_delay_secs"`
	BaseTopic            string `mapstructure:"base_topic"`
	TopicScheme          string `mapstructure:"topic_scheme"`
	PublishTimeoutMillis uint32 `mapstructure:"publish_timeout_millis"`
}

type StoreConfig struct {
	// sqlite database file. ":memory:" keeps the document tree in memory
	// only, which is what the tests use.
	Path string
}

type ClockSyncConfig struct {
	Enable       bool
	IntervalMins uint32 `mapstructure:"interval_mins"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	upperBaseTopic := strings.ToUpper(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[A-Z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(upperBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return upperBaseTopic, nil
}

func CheckTopicScheme(scheme string) (string, error) {
	s := strings.ToLower(scheme)
	if s != TopicSchemeCombined && s != TopicSchemeSplit {
		return "", errors.New("invalid topic scheme. must be \"combined\" or \"split\"")
	}
	return s, nil
}
