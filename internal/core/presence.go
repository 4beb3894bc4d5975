package core

import (
	"fmt"
	"sync"
)

// Presence maps usernames to their live connections.
// A connection is bound to at most one username for its lifetime.
type Presence struct {
	mu       sync.RWMutex
	byUser   map[string]map[*Client]struct{}
	byClient map[*Client]string
}

// NewPresence constructs an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byUser:   make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]string),
	}
}

// Join binds c to username. Joining again with the same username is a no-op.
// A client that has already been closed cannot join.
func (p *Presence) Join(c *Client, username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.closed() {
		return ErrClientClosed
	}

	if current, ok := p.byClient[c]; ok {
		if current == username {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrAlreadyIdentified, current)
	}

	set, ok := p.byUser[username]
	if !ok {
		set = make(map[*Client]struct{})
		p.byUser[username] = set
	}
	set[c] = struct{}{}
	p.byClient[c] = username
	return nil
}

// Route returns a snapshot of the live connections of username.
func (p *Presence) Route(username string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.byUser[username]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// Leave drops c. It returns the username c was bound to, if any.
func (p *Presence) Leave(c *Client) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	username, ok := p.byClient[c]
	if !ok {
		return "", false
	}
	delete(p.byClient, c)

	set := p.byUser[username]
	delete(set, c)
	if len(set) == 0 {
		delete(p.byUser, username)
	}
	return username, true
}

// Online reports whether username has at least one live connection.
func (p *Presence) Online(username string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[username]) > 0
}
