package mqtt

import (
	"fmt"
	"strings"

	"roomsense/internal/config"
	"roomsense/internal/core/domain"
)

// Per-device topic suffixes. CMD is egress (dashboard -> device), the
// rest are ingress. Which ingress suffixes exist depends on the firmware
// generation: combined boards put everything on DATA, split boards use
// all three.
const (
	suffixCommand = "CMD"
	suffixData    = "DATA"
	suffixState   = "STATE"
	suffixInfo    = "INFO"
)

// TopicScheme builds and parses the per-device topic namespace
// BASE/{deviceId}/{SUFFIX}.
type TopicScheme struct {
	Base   string
	Scheme string
}

func NewTopicScheme(cfg config.MQTTConfig) TopicScheme {
	return TopicScheme{Base: cfg.BaseTopic, Scheme: cfg.TopicScheme}
}

func (t TopicScheme) CommandTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", t.Base, deviceID, suffixCommand)
}

func (t TopicScheme) DataTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", t.Base, deviceID, suffixData)
}

func (t TopicScheme) StateTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", t.Base, deviceID, suffixState)
}

func (t TopicScheme) InfoTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", t.Base, deviceID, suffixInfo)
}

// DeviceTopics returns every ingress topic to subscribe for one device.
func (t TopicScheme) DeviceTopics(deviceID string) []string {
	if t.Scheme == config.TopicSchemeSplit {
		return []string{t.DataTopic(deviceID), t.StateTopic(deviceID), t.InfoTopic(deviceID)}
	}
	return []string{t.DataTopic(deviceID)}
}

// ParseTelemetry extracts the device ID and message class from an
// ingress topic. combined reports that the payload may carry fields of
// every class (single-topic firmware). ok is false for command topics,
// foreign base topics and malformed names.
func (t TopicScheme) ParseTelemetry(topic string) (deviceID string, class domain.MessageClass, combined bool, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != t.Base || parts[1] == "" {
		return "", 0, false, false
	}
	deviceID = parts[1]
	switch parts[2] {
	case suffixData:
		return deviceID, domain.ClassSensorData, t.Scheme == config.TopicSchemeCombined, true
	case suffixState:
		return deviceID, domain.ClassState, false, true
	case suffixInfo:
		return deviceID, domain.ClassInfo, false, true
	}
	return "", 0, false, false
}
