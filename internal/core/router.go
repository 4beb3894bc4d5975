package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat/internal/store"
)

// Persister durably records messages before they are routed.
type Persister interface {
	AppendMessage(ctx context.Context, msg *store.Message) error
}

// AccountLookup resolves a username to an account.
type AccountLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
}

// Router persists a send event and then fans it out to every live
// connection of the sender and the receiver.
type Router struct {
	store    Persister
	accounts AccountLookup
	presence *Presence
	pusher   Pusher
	locks    *pairLocks
	log      *zerolog.Logger
}

// NewRouter builds a router. accounts may be nil to skip receiver checks.
func NewRouter(st Persister, accounts AccountLookup, presence *Presence, pusher Pusher, logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if pusher == nil {
		pusher = NewLivePusher(logger)
	}
	return &Router{
		store:    st,
		accounts: accounts,
		presence: presence,
		pusher:   pusher,
		locks:    newPairLocks(),
		log:      logger,
	}
}

// Deliver validates msg, appends it to the store and pushes it to the live
// connections of both parties. Nothing is pushed if persisting fails.
// Messages of one pair are persisted and pushed in the order Deliver is called.
func (r *Router) Deliver(ctx context.Context, msg Message) (*Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkReceiver(ctx, msg.Receiver); err != nil {
		return nil, err
	}

	unlock := r.locks.lock(msg.Sender, msg.Receiver)
	defer unlock()

	record := msg.toStore()
	if err := r.store.AppendMessage(ctx, record); err != nil {
		r.log.Error().Err(err).
			Str("sender", msg.Sender).
			Str("receiver", msg.Receiver).
			Msg("persist message failed")
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	persisted := MessageFromStore(record)
	recipients := r.recipients(persisted.Sender, persisted.Receiver)
	r.pusher.Push(recipients, &Event{Kind: EventMessage, Message: persisted})

	r.log.Debug().
		Int64("message_id", persisted.ID).
		Str("sender", persisted.Sender).
		Str("receiver", persisted.Receiver).
		Bool("file", persisted.IsFile()).
		Int("recipients", len(recipients)).
		Msg("message routed")

	return &persisted, nil
}

func (r *Router) checkReceiver(ctx context.Context, username string) error {
	if r.accounts == nil {
		return nil
	}
	if _, err := r.accounts.GetUserByUsername(ctx, username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: unknown receiver %q", ErrValidation, username)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// recipients is the union of both parties' connections. A note-to-self
// reaches each device once.
func (r *Router) recipients(sender, receiver string) []*Client {
	clients := r.presence.Route(sender)
	if receiver == sender {
		return clients
	}
	return append(clients, r.presence.Route(receiver)...)
}
