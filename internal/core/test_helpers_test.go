package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/privchat/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(wait):
	}
}

// memStore is an in-memory Persister and AccountLookup.
type memStore struct {
	mu       sync.Mutex
	next     int64
	messages []*store.Message
	users    map[string]bool
	err      error
}

func newMemStore(users ...string) *memStore {
	m := &memStore{users: make(map[string]bool)}
	for _, u := range users {
		m.users[u] = true
	}
	return m
}

func (m *memStore) AppendMessage(_ context.Context, msg *store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.next++
	msg.ID = m.next
	msg.CreatedAt = time.Now().UTC()
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.users[username] {
		return nil, store.ErrNotFound
	}
	return &store.User{Username: username}, nil
}

func (m *memStore) failWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *memStore) stored() []*store.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.Message(nil), m.messages...)
}

func startHub(t *testing.T, st *memStore) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	presence := NewPresence()
	hub := NewHub(NewRouter(st, st, presence, nil, nil), presence, nil)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func identify(t *testing.T, hub *Hub, id, user string) *Client {
	t.Helper()

	c := NewClient(id)
	if !hub.RegisterClient(c) {
		t.Fatalf("hub stopped")
	}
	c.Commands <- &Command{Kind: CommandIdentify, User: user}
	mustEvent(t, c.Events, EventIdentified)
	return c
}
