package port

// BrokerChannel is the long-lived publish/subscribe session to the
// message broker. Connected is the single connectivity query every
// precondition check goes through; callers must check it before
// publishing, the channel does not queue while disconnected.
type BrokerChannel interface {
	Connected() bool
	Publish(topic string, payload []byte) error
	Subscribe(topic string) error
}
