package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRouter(st *memStore) (*Router, *Presence) {
	presence := NewPresence()
	return NewRouter(st, st, presence, nil, nil), presence
}

func join(t *testing.T, p *Presence, id, user string) *Client {
	t.Helper()
	c := NewClient(id)
	require.NoError(t, p.Join(c, user))
	return c
}

func TestRouterPersistsThenFansOut(t *testing.T) {
	st := newMemStore("alice", "bob")
	router, presence := newTestRouter(st)

	phone := join(t, presence, "a1", "alice")
	laptop := join(t, presence, "a2", "alice")
	bob := join(t, presence, "b1", "bob")
	carol := join(t, presence, "c1", "carol")

	msg, err := router.Deliver(context.Background(), Message{Sender: "alice", Receiver: "bob", Text: "hi"})
	require.NoError(t, err)
	require.EqualValues(t, 1, msg.ID)
	require.False(t, msg.CreatedAt.IsZero())

	for _, c := range []*Client{phone, laptop, bob} {
		ev := mustEvent(t, c.Events, EventMessage)
		require.Equal(t, "alice", ev.Message.Sender)
		require.Equal(t, "bob", ev.Message.Receiver)
		require.Equal(t, "hi", ev.Message.Text)
		require.Equal(t, msg.ID, ev.Message.ID)
	}
	mustNoEvent(t, carol.Events, 50*time.Millisecond)

	require.Len(t, st.stored(), 1)
}

func TestRouterOfflineReceiverStillPersists(t *testing.T) {
	st := newMemStore("alice", "bob")
	router, presence := newTestRouter(st)
	alice := join(t, presence, "a1", "alice")

	_, err := router.Deliver(context.Background(), Message{
		Sender:   "alice",
		Receiver: "bob",
		File:     &File{Data: "iVBORw0KGgo=", Name: "photo.png"},
	})
	require.NoError(t, err)

	ev := mustEvent(t, alice.Events, EventMessage)
	require.True(t, ev.Message.IsFile())
	require.Equal(t, "photo.png", ev.Message.File.Name)

	stored := st.stored()
	require.Len(t, stored, 1)
	require.Equal(t, "photo.png", *stored[0].FileName)
	require.Nil(t, stored[0].Content)
}

func TestRouterStorageFailureDoesNotPush(t *testing.T) {
	st := newMemStore("alice", "bob")
	st.failWith(errors.New("disk gone"))
	router, presence := newTestRouter(st)
	alice := join(t, presence, "a1", "alice")
	bob := join(t, presence, "b1", "bob")

	_, err := router.Deliver(context.Background(), Message{Sender: "alice", Receiver: "bob", Text: "hi"})
	require.ErrorIs(t, err, ErrStorage)
	require.Equal(t, ErrCodeStorage, ErrorFor(err).Code)

	mustNoEvent(t, alice.Events, 50*time.Millisecond)
	mustNoEvent(t, bob.Events, 50*time.Millisecond)
}

func TestRouterRejectsMalformed(t *testing.T) {
	st := newMemStore("alice", "bob")
	router, _ := newTestRouter(st)

	tests := []struct {
		name string
		msg  Message
	}{
		{name: "no sender", msg: Message{Receiver: "bob", Text: "hi"}},
		{name: "no receiver", msg: Message{Sender: "alice", Text: "hi"}},
		{name: "no payload", msg: Message{Sender: "alice", Receiver: "bob"}},
		{name: "blank text", msg: Message{Sender: "alice", Receiver: "bob", Text: "   "}},
		{name: "text and file", msg: Message{Sender: "alice", Receiver: "bob", Text: "hi", File: &File{Data: "x", Name: "x.txt"}}},
		{name: "file without name", msg: Message{Sender: "alice", Receiver: "bob", File: &File{Data: "x"}}},
		{name: "unknown receiver", msg: Message{Sender: "alice", Receiver: "mallory", Text: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := router.Deliver(context.Background(), tt.msg)
			require.ErrorIs(t, err, ErrValidation)
			require.Equal(t, ErrCodeBadRequest, ErrorFor(err).Code)
		})
	}

	require.Empty(t, st.stored())
}

func TestRouterKeepsPairOrder(t *testing.T) {
	st := newMemStore("alice", "bob")
	router, presence := newTestRouter(st)
	bob := join(t, presence, "b1", "bob")

	ctx := context.Background()
	for _, text := range []string{"m1", "m2", "m3"} {
		_, err := router.Deliver(ctx, Message{Sender: "alice", Receiver: "bob", Text: text})
		require.NoError(t, err)
	}

	for _, want := range []string{"m1", "m2", "m3"} {
		ev := mustEvent(t, bob.Events, EventMessage)
		require.Equal(t, want, ev.Message.Text)
	}

	stored := st.stored()
	require.Len(t, stored, 3)
	for i, want := range []string{"m1", "m2", "m3"} {
		require.Equal(t, want, *stored[i].Content)
	}
}

func TestRouterSlowConsumerDoesNotBlockOthers(t *testing.T) {
	st := newMemStore("alice", "bob")
	router, presence := newTestRouter(st)
	stalled := join(t, presence, "b1", "bob")
	healthy := join(t, presence, "b2", "bob")

	for range cap(stalled.Events) {
		stalled.Events <- &Event{Kind: EventIdentified}
	}

	done := make(chan error, 1)
	go func() {
		_, err := router.Deliver(context.Background(), Message{Sender: "alice", Receiver: "bob", Text: "hi"})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("deliver blocked on a full connection")
	}
	ev := mustEvent(t, healthy.Events, EventMessage)
	require.Equal(t, "hi", ev.Message.Text)
}

func TestRouterNoteToSelfDeliveredOncePerDevice(t *testing.T) {
	st := newMemStore("alice")
	router, presence := newTestRouter(st)
	alice := join(t, presence, "a1", "alice")

	_, err := router.Deliver(context.Background(), Message{Sender: "alice", Receiver: "alice", Text: "memo"})
	require.NoError(t, err)

	mustEvent(t, alice.Events, EventMessage)
	mustNoEvent(t, alice.Events, 50*time.Millisecond)
}
