package actor

import (
	"sync"
	"testing"
	"time"

	"roomsense/internal/core/domain"
	"roomsense/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedHistoryStore serves canned history per device and can hold a
// query open until the test releases it, to exercise results that land
// while the session has moved on.
type gatedHistoryStore struct {
	mu      sync.Mutex
	samples map[string][]port.Document
	gates   map[string]chan struct{}
}

func (s *gatedHistoryStore) QueryLast(path string, n int) ([]port.Document, error) {
	s.mu.Lock()
	gate := s.gates[path]
	docs := s.samples[path]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return docs, nil
}

func (s *gatedHistoryStore) Get(path string) (map[string]any, error) { return nil, nil }
func (s *gatedHistoryStore) GetChildren(path string) (map[string]map[string]any, error) {
	return nil, nil
}
func (s *gatedHistoryStore) Update(path string, fields map[string]any) error { return nil }
func (s *gatedHistoryStore) UpdateMulti(updates map[string]any) error        { return nil }
func (s *gatedHistoryStore) Push(path string, fields map[string]any) (string, error) {
	return "", nil
}
func (s *gatedHistoryStore) Delete(path string) error { return nil }
func (s *gatedHistoryStore) Watch(path string, fn port.WatchFunc) func() {
	fn(nil)
	return func() {}
}
func (s *gatedHistoryStore) Close() error { return nil }

var _ port.DocumentStore = (*gatedHistoryStore)(nil)

func historyDoc(key string, temp float64) port.Document {
	return port.Document{Key: key, Fields: map[string]any{
		"temp":        temp,
		"humid":       40.0,
		"lux":         300.0,
		"last_update": float64(1700000000000),
	}}
}

// A backfill result for a device the session already switched away from
// must be discarded, not mixed into the current device's window.
func TestHistorySessionStaleBackfillDiscarded(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root
	logger := zap.NewNop()

	gate := make(chan struct{})
	docStore := &gatedHistoryStore{
		samples: map[string][]port.Document{
			"history/ROOMB": {historyDoc("1", 21.0)},
		},
		gates: map[string]chan struct{}{
			"history/ROOMB": gate,
		},
	}
	es := &eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewHistorySessionActor(docStore, es, logger)
	})
	pid, err := context.SpawnNamed(props, "history")
	require.NoError(t, err)

	future := context.RequestFuture(pid, domain.OpenChartRequest{
		DeviceID: "ROOMB",
		Kind:     domain.ChartKindTemperature,
	}, 10*time.Second)

	time.Sleep(200 * time.Millisecond)

	// a query issued for the previous device completes while the
	// current backfill is still open
	context.Send(pid, backfillResult{
		deviceID: "ROOMA",
		samples:  []domain.HistorySample{{Temp: 99, Humid: 99, Lux: 99, LastUpdate: 1}},
	})

	close(gate)

	res, err := future.Result()
	require.NoError(t, err)
	resp, ok := res.(domain.ChartSeriesResponse)
	require.True(t, ok)
	require.False(t, resp.HasResponseError())
	require.Len(t, resp.Values, 1)
	assert.Equal(t, 21.0, resp.Values[0])

	context.Stop(pid)
	as.Shutdown()
}

// Switching devices replaces the window, and a late result for the old
// device must not overwrite the new one.
func TestHistorySessionDeviceSwitchAndLateResult(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root
	logger := zap.NewNop()

	docStore := &gatedHistoryStore{
		samples: map[string][]port.Document{
			"history/ROOMA": {historyDoc("1", 11.0)},
			"history/ROOMB": {historyDoc("1", 21.0), historyDoc("2", 22.0)},
		},
	}
	es := &eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewHistorySessionActor(docStore, es, logger)
	})
	pid, err := context.SpawnNamed(props, "history")
	require.NoError(t, err)

	res, err := context.RequestFuture(pid, domain.OpenChartRequest{
		DeviceID: "ROOMA",
		Kind:     domain.ChartKindTemperature,
	}, 10*time.Second).Result()
	require.NoError(t, err)
	respA, ok := res.(domain.ChartSeriesResponse)
	require.True(t, ok)
	require.Equal(t, []float64{11.0}, respA.Values)

	res, err = context.RequestFuture(pid, domain.OpenChartRequest{
		DeviceID: "ROOMB",
		Kind:     domain.ChartKindTemperature,
	}, 10*time.Second).Result()
	require.NoError(t, err)
	respB, ok := res.(domain.ChartSeriesResponse)
	require.True(t, ok)
	require.Equal(t, []float64{21.0, 22.0}, respB.Values)

	// the old device's backfill finally lands
	context.Send(pid, backfillResult{
		deviceID: "ROOMA",
		samples:  []domain.HistorySample{{Temp: 99, Humid: 99, Lux: 99, LastUpdate: 1}},
	})

	time.Sleep(100 * time.Millisecond)

	res, err = context.RequestFuture(pid, domain.OpenChartRequest{
		DeviceID: "ROOMB",
		Kind:     domain.ChartKindTemperature,
	}, 10*time.Second).Result()
	require.NoError(t, err)
	respB2, ok := res.(domain.ChartSeriesResponse)
	require.True(t, ok)
	assert.Equal(t, []float64{21.0, 22.0}, respB2.Values)

	context.Stop(pid)
	as.Shutdown()
}
