package domain

// Events published on the actor system's eventstream.

// DeviceUpdatedEvent is emitted by the directory whenever a device
// document changes in the store. The report-detail session feeds its
// chart from these.
type DeviceUpdatedEvent struct {
	Device Device
}

// DeviceRemovedEvent is emitted when a device disappears from the
// directory snapshot.
type DeviceRemovedEvent struct {
	DeviceID string
}

// Broker connection lifecycle. Published from the MQTT client's
// callback goroutines; the broker actor and the directory react to
// them on their own mailboxes.
type BrokerConnectedEvent struct{}

type BrokerConnectionLostEvent struct {
	Err error
}

// BrokerMessageEvent is one raw inbound broker message, before the
// ingress bridge has classified it.
type BrokerMessageEvent struct {
	Topic   string
	Payload []byte
}
