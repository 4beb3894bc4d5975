package core

import "github.com/rs/zerolog"

// Pusher hands a persisted event to live connections.
// Implementations must not let one slow connection hold up the others.
type Pusher interface {
	Push(clients []*Client, ev *Event)
}

// LivePusher is fire-and-forget: each connection gets a non-blocking send
// and a full buffer drops the event. Receivers catch up through history.
type LivePusher struct {
	log *zerolog.Logger
}

// NewLivePusher builds the default pusher.
func NewLivePusher(logger *zerolog.Logger) *LivePusher {
	return &LivePusher{log: logger}
}

// Push delivers ev to every client.
func (p *LivePusher) Push(clients []*Client, ev *Event) {
	for _, c := range clients {
		if !c.Deliver(ev) && p.log != nil {
			p.log.Warn().
				Str("client_id", c.ID).
				Int64("message_id", ev.Message.ID).
				Msg("dropped event for slow consumer")
		}
	}
}
