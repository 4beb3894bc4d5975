package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type evictRequest struct {
	user  string
	reply chan []*Client
}

// Hub owns the lifecycle of live connections. Every registered client gets
// one worker goroutine that executes its commands in order.
type Hub struct {
	router   *Router
	presence *Presence
	log      *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	evict      chan evictRequest
	done       chan struct{}

	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

// NewHub creates a hub that routes through router and tracks presence.
func NewHub(router *Router, presence *Presence, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		router:     router,
		presence:   presence,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		evict:      make(chan evictRequest),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run processes registrations until ctx is cancelled, then stops all workers.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.wg.Wait()
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				defer close(c.stopped)
				h.serve(ctx, c)
			}()
			h.log.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client registered")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client unregistered")
			}
		case req := <-h.evict:
			clients := h.presence.Route(req.user)
			for _, c := range clients {
				c.revoked.Store(true)
				h.drop(c)
			}
			h.log.Info().Str("user", req.user).Int("clients", len(clients)).Msg("user connections evicted")
			req.reply <- clients
		}
	}
}

// RegisterClient hands c to the hub. It reports false if the hub has stopped.
func (h *Hub) RegisterClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// UnregisterClient removes c from presence and stops its worker.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Evict disconnects every live connection of username and waits until their
// workers have finished, so nothing they queued is persisted afterwards.
func (h *Hub) Evict(ctx context.Context, username string) error {
	req := evictRequest{user: username, reply: make(chan []*Client, 1)}
	select {
	case h.evict <- req:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	var clients []*Client
	select {
	case clients = <-req.reply:
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, c := range clients {
		select {
		case <-c.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Presence exposes the registry for read-only queries.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// drop closes c before leaving presence so a late Join on c is rejected.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	c.close()
	if user, ok := h.presence.Leave(c); ok {
		h.log.Debug().Str("client_id", c.ID).Str("user", user).Msg("left presence")
	}
}

func (h *Hub) serve(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			if c.Revoked() {
				return
			}
			// Commands read off the socket before disconnect still count.
			for {
				select {
				case cmd := <-c.Commands:
					h.handle(ctx, c, cmd)
				default:
					return
				}
			}
		case cmd := <-c.Commands:
			h.handle(ctx, c, cmd)
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	if cmd == nil {
		return
	}

	switch cmd.Kind {
	case CommandIdentify:
		if c.closed() {
			return
		}
		if err := h.presence.Join(c, cmd.User); err != nil {
			h.fail(c, err)
			return
		}
		c.user = cmd.User
		c.Deliver(&Event{Kind: EventIdentified, User: cmd.User})
		h.log.Info().Str("client_id", c.ID).Str("user", cmd.User).Msg("client identified")

	case CommandSendMessage:
		if c.Revoked() {
			return
		}
		if c.user == "" {
			h.fail(c, ErrNotIdentified)
			return
		}
		msg := cmd.Message
		if msg.Sender != "" && msg.Sender != c.user {
			h.fail(c, fmt.Errorf("%w: from does not match connection identity", ErrValidation))
			return
		}
		msg.Sender = c.user
		if _, err := h.router.Deliver(ctx, msg); err != nil {
			h.fail(c, err)
		}

	default:
		h.fail(c, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

// fail reports err to the originating connection only.
func (h *Hub) fail(c *Client, err error) {
	h.log.Debug().Err(err).Str("client_id", c.ID).Str("user", c.user).Msg("command failed")
	c.Deliver(&Event{Kind: EventError, Error: ErrorFor(err)})
}
