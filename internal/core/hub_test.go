package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestHubIdentifySendAndEcho(t *testing.T) {
	hub := startHub(t, newMemStore("alice", "bob"))

	phone := identify(t, hub, "a1", "alice")
	laptop := identify(t, hub, "a2", "alice")
	bob := identify(t, hub, "b1", "bob")

	phone.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Sender: "alice", Receiver: "bob", Text: "hi"},
	}

	for _, c := range []*Client{phone, laptop, bob} {
		ev := mustEvent(t, c.Events, EventMessage)
		if ev.Message.Sender != "alice" || ev.Message.Receiver != "bob" || ev.Message.Text != "hi" {
			t.Fatalf("unexpected message event on %s: %+v", c.ID, ev.Message)
		}
	}
}

func TestHubSenderDefaultsToIdentity(t *testing.T) {
	st := newMemStore("alice", "bob")
	hub := startHub(t, st)
	alice := identify(t, hub, "a1", "alice")

	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Receiver: "bob", Text: "no from field"},
	}

	ev := mustEvent(t, alice.Events, EventMessage)
	if ev.Message.Sender != "alice" {
		t.Fatalf("expected sender alice, got %q", ev.Message.Sender)
	}
}

func TestHubSendWithoutHelloProducesError(t *testing.T) {
	hub := startHub(t, newMemStore("alice", "bob"))

	c := NewClient("anon")
	hub.RegisterClient(c)
	c.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Sender: "alice", Receiver: "bob", Text: "hi"},
	}

	ev := mustEvent(t, c.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotIdentified {
		t.Fatalf("expected not_identified error, got %+v", ev)
	}
}

func TestHubSpoofedSenderProducesError(t *testing.T) {
	st := newMemStore("alice", "bob")
	hub := startHub(t, st)
	mallory := identify(t, hub, "m1", "mallory")

	mallory.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Sender: "alice", Receiver: "bob", Text: "it's me"},
	}

	ev := mustEvent(t, mallory.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", ev)
	}
	if n := len(st.stored()); n != 0 {
		t.Fatalf("expected nothing stored, got %d", n)
	}
}

func TestHubReidentifyProducesError(t *testing.T) {
	hub := startHub(t, newMemStore())
	c := identify(t, hub, "c1", "alice")

	c.Commands <- &Command{Kind: CommandIdentify, User: "bob"}

	ev := mustEvent(t, c.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeAlreadyIdentified {
		t.Fatalf("expected already_identified error, got %+v", ev)
	}
	if hub.Presence().Online("bob") {
		t.Fatalf("bob should not be online")
	}
}

func TestHubStorageErrorOnlyReachesSender(t *testing.T) {
	st := newMemStore("alice", "bob")
	hub := startHub(t, st)
	alice := identify(t, hub, "a1", "alice")
	bob := identify(t, hub, "b1", "bob")

	st.failWith(errors.New("database is locked"))
	alice.Commands <- &Command{
		Kind:    CommandSendMessage,
		Message: Message{Receiver: "bob", Text: "hi"},
	}

	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeStorage {
		t.Fatalf("expected storage_error, got %+v", ev)
	}
	mustNoEvent(t, bob.Events, 100*time.Millisecond)
}

func TestHubUnregisterLeavesPresence(t *testing.T) {
	hub := startHub(t, newMemStore())
	c := identify(t, hub, "c1", "alice")

	if !hub.Presence().Online("alice") {
		t.Fatalf("alice should be online")
	}

	hub.UnregisterClient(c)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client was not released")
	}
	if hub.Presence().Online("alice") {
		t.Fatalf("alice should be offline after unregister")
	}
}

func TestHubDroppedClientNeverRejoinsPresence(t *testing.T) {
	for i := range 200 {
		ctx, cancel := context.WithCancel(context.Background())
		presence := NewPresence()
		hub := NewHub(NewRouter(newMemStore("alice"), nil, presence, nil, nil), presence, nil)
		go hub.Run(ctx)

		c := NewClient(fmt.Sprintf("c%d", i))
		if !hub.RegisterClient(c) {
			t.Fatal("hub stopped")
		}
		c.Commands <- &Command{Kind: CommandIdentify, User: "alice"}
		hub.UnregisterClient(c)
		<-c.stopped

		if presence.Online("alice") || len(presence.Route("alice")) != 0 {
			cancel()
			t.Fatalf("iteration %d: closed client still routed for alice", i)
		}
		cancel()
	}
}

func TestHubEvictDisconnectsUser(t *testing.T) {
	st := newMemStore("alice", "bob")
	hub := startHub(t, st)

	phone := identify(t, hub, "a1", "alice")
	laptop := identify(t, hub, "a2", "alice")
	bob := identify(t, hub, "b1", "bob")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := hub.Evict(ctx, "alice"); err != nil {
		t.Fatalf("evict: %v", err)
	}

	for _, c := range []*Client{phone, laptop} {
		select {
		case <-c.Done():
		default:
			t.Fatalf("%s should be closed", c.ID)
		}
		if !c.Revoked() {
			t.Fatalf("%s should be marked revoked", c.ID)
		}
	}
	if hub.Presence().Online("alice") {
		t.Fatal("alice should be offline")
	}
	if !hub.Presence().Online("bob") || bob.Revoked() {
		t.Fatal("bob must not be affected")
	}

	// Workers have exited, so a late command is never executed.
	phone.Commands <- &Command{Kind: CommandSendMessage, Message: Message{Receiver: "bob", Text: "late"}}
	mustNoEvent(t, bob.Events, 50*time.Millisecond)
	if n := len(st.stored()); n != 0 {
		t.Fatalf("expected nothing stored, got %d", n)
	}

	if err := hub.Evict(ctx, "nobody"); err != nil {
		t.Fatalf("evicting an offline user: %v", err)
	}
}

func TestHubEvictAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	presence := NewPresence()
	hub := NewHub(NewRouter(newMemStore(), nil, presence, nil, nil), presence, nil)
	go hub.Run(ctx)
	cancel()
	<-hub.done

	if err := hub.Evict(context.Background(), "alice"); err != nil {
		t.Fatalf("expected nil after stop, got %v", err)
	}
}
