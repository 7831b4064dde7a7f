package actor

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"roomsense/internal/core/domain"
	"roomsense/internal/mqtt"
	"roomsense/internal/store"
	"roomsense/internal/util"
	"roomsense/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSession stands in for the MQTT client. Connect opens the session
// and reports it the same way the real client's callbacks do: the
// continuation gets the result, the eventstream gets the connected
// event.
type fakeSession struct {
	mu         sync.Mutex
	es         *eventstream.EventStream
	connected  bool
	connects   int
	subscribed []string
}

func (s *fakeSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSession) Publish(topic string, payload []byte) error {
	return nil
}

func (s *fakeSession) Subscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, topic)
	return nil
}

func (s *fakeSession) Connect(continuation func(error), timeout time.Duration) {
	s.mu.Lock()
	s.connected = true
	s.connects++
	s.mu.Unlock()
	continuation(nil)
	s.es.Publish(domain.BrokerConnectedEvent{})
}

func (s *fakeSession) Disconnect(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// drop emulates the network going away without telling the actor; the
// connection-lost event is published by the test, like the real
// client's OnConnectionLost callback would.
func (s *fakeSession) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

func (s *fakeSession) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *fakeSession) subscribedTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscribed...)
}

var _ BrokerSession = (*fakeSession)(nil)

func TestBrokerActorReconnectAndResubscribe(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.NewNop()

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	docStore, err := store.Open(filepath.Join(t.TempDir(), "docs.db"), logger)
	require.NoError(t, err)
	defer docStore.Close()

	es := &eventstream.EventStream{}
	session := &fakeSession{es: es}
	topics := mqtt.NewTopicScheme(cfg.MQTT)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewBrokerActor(&cfg, session, topics, docStore, es, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(500 * time.Millisecond)

	// connects once on start
	assert.Equal(t, 1, session.connectCount())

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	health, ok := result.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, health.Healthy)
	assert.Equal(t, "connected", health.State)

	context.Send(pid, SyncSubscriptionsRequest{DeviceIDs: []string{"ROOM1", "ROOM2"}})

	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, []string{
		"DATALOGGER/ROOM1/DATA",
		"DATALOGGER/ROOM2/DATA",
	}, session.subscribedTopics())

	// connection drops: the tracked set is forgotten and a reconnect is
	// scheduled with the configured fixed delay
	session.drop()
	es.Publish(domain.BrokerConnectionLostEvent{Err: errors.New("EOF")})

	time.Sleep(1500 * time.Millisecond)

	assert.Equal(t, 2, session.connectCount())

	// after the reconnect the last requested device set is replayed in
	// full, not trusted to still be subscribed
	assert.Equal(t, []string{
		"DATALOGGER/ROOM1/DATA",
		"DATALOGGER/ROOM2/DATA",
		"DATALOGGER/ROOM1/DATA",
		"DATALOGGER/ROOM2/DATA",
	}, session.subscribedTopics())

	// once connected, the retry timer must not fire again
	time.Sleep(2500 * time.Millisecond)

	assert.Equal(t, 2, session.connectCount())

	context.Stop(pid)

	time.Sleep(500 * time.Millisecond)

	as.Shutdown()
}
