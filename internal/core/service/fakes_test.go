package service

import (
	"fmt"
	"sort"
	"strings"

	"roomsense/internal/core/port"
)

// fakeBroker records published messages and subscriptions.
type fakeBroker struct {
	connected    bool
	published    []fakeMessage
	subscribed   []string
	publishErr   error
	subscribeErr error
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (b *fakeBroker) Connected() bool {
	return b.connected
}

func (b *fakeBroker) Publish(topic string, payload []byte) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, fakeMessage{topic: topic, payload: payload})
	return nil
}

func (b *fakeBroker) Subscribe(topic string) error {
	if b.subscribeErr != nil {
		return b.subscribeErr
	}
	b.subscribed = append(b.subscribed, topic)
	return nil
}

var _ port.BrokerChannel = (*fakeBroker)(nil)

// fakeStore is an in-memory document tree with the same path semantics
// as the sqlite store: two-segment document paths plus one optional
// field segment.
type fakeStore struct {
	docs             map[string]map[string]any
	pushCounter      int
	updateMultiCalls []map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]map[string]any{}}
}

func (s *fakeStore) Get(path string) (map[string]any, error) {
	return s.docs[path], nil
}

func (s *fakeStore) GetChildren(path string) (map[string]map[string]any, error) {
	out := map[string]map[string]any{}
	prefix := path + "/"
	for key, fields := range s.docs {
		if strings.HasPrefix(key, prefix) {
			out[strings.TrimPrefix(key, prefix)] = fields
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *fakeStore) Update(path string, fields map[string]any) error {
	doc := s.docs[path]
	if doc == nil {
		doc = map[string]any{}
		s.docs[path] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *fakeStore) UpdateMulti(updates map[string]any) error {
	s.updateMultiCalls = append(s.updateMultiCalls, updates)
	for path, value := range updates {
		if fields, ok := value.(map[string]any); ok {
			if err := s.Update(path, fields); err != nil {
				return err
			}
			continue
		}
		parts := strings.Split(path, "/")
		doc := strings.Join(parts[:len(parts)-1], "/")
		if err := s.Update(doc, map[string]any{parts[len(parts)-1]: value}); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) Push(path string, fields map[string]any) (string, error) {
	s.pushCounter++
	id := fmt.Sprintf("%017d", s.pushCounter)
	s.docs[path+"/"+id] = fields
	return id, nil
}

func (s *fakeStore) Delete(path string) error {
	delete(s.docs, path)
	prefix := path + "/"
	for key := range s.docs {
		if strings.HasPrefix(key, prefix) {
			delete(s.docs, key)
		}
	}
	return nil
}

func (s *fakeStore) QueryLast(path string, n int) ([]port.Document, error) {
	prefix := path + "/"
	var keys []string
	for key := range s.docs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if len(keys) > n {
		keys = keys[len(keys)-n:]
	}
	docs := make([]port.Document, 0, len(keys))
	for _, key := range keys {
		docs = append(docs, port.Document{
			Key:    strings.TrimPrefix(key, prefix),
			Fields: s.docs[key],
		})
	}
	return docs, nil
}

func (s *fakeStore) Watch(path string, fn port.WatchFunc) func() {
	children, _ := s.GetChildren(path)
	fn(children)
	return func() {}
}

func (s *fakeStore) Close() error {
	return nil
}

var _ port.DocumentStore = (*fakeStore)(nil)
