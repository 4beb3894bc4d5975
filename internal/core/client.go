package core

import (
	"sync"
	"sync/atomic"
)

// Client is one live connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// user is owned by the client's worker goroutine.
	user string

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	revoked   atomic.Bool
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Deliver queues an event for the client without blocking.
// It reports false if the client's buffer is full or the client is gone.
func (c *Client) Deliver(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Done is closed once the hub has unregistered the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Revoked reports whether the client was disconnected because its user logged out.
func (c *Client) Revoked() bool {
	return c.revoked.Load()
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
