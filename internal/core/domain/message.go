package domain

// Message classes a device can publish. The class is decided once at the
// ingress boundary (topic suffix, or field presence on the combined data
// topic) and handled exhaustively from there on; no other component
// inspects payload shape.
type MessageClass int

const (
	ClassSensorData MessageClass = iota
	ClassState
	ClassInfo
)

func (c MessageClass) String() string {
	switch c {
	case ClassSensorData:
		return "data"
	case ClassState:
		return "state"
	case ClassInfo:
		return "info"
	}
	return "unknown"
}

type InboundMessage interface {
	Device() string
	Class() MessageClass
}

// SensorDataMessage carries sensor readings. Fields are pointers because
// a board may report a partial sample; history is only appended when all
// three are present together. Timestamp is epoch milliseconds, already
// resolved by the ingress bridge (device clock preferred, receipt time
// as fallback).
type SensorDataMessage struct {
	DeviceID  string
	Temp      *float64
	Humid     *float64
	Lux       *float64
	Timestamp int64
}

func (m SensorDataMessage) Device() string      { return m.DeviceID }
func (m SensorDataMessage) Class() MessageClass { return ClassSensorData }

// Complete reports whether the message carries a full sensor sample.
func (m SensorDataMessage) Complete() bool {
	return m.Temp != nil && m.Humid != nil && m.Lux != nil
}

// StateMessage carries power/mode/actuator state reported by the board.
type StateMessage struct {
	DeviceID string
	Active   *bool
	Mode     *string
	Interval *int
	Fan      *bool
	Lamp     *bool
	AC       *bool
}

func (m StateMessage) Device() string      { return m.DeviceID }
func (m StateMessage) Class() MessageClass { return ClassState }

// InfoMessage carries network/firmware/provisioning details.
type InfoMessage struct {
	DeviceID   string
	WifiSSID   *string
	IPAddress  *string
	MQTTBroker *string
	Firmware   *string
	SetupMode  *bool
	APSSID     *string
	APIP       *string
}

func (m InfoMessage) Device() string      { return m.DeviceID }
func (m InfoMessage) Class() MessageClass { return ClassInfo }
