package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventIdentified confirms that the connection is bound to User.
	EventIdentified EventKind = iota
	// EventMessage carries a persisted message to sender and receiver devices.
	EventMessage
	// EventError notifies the client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	User    string
	Message Message
	Error   *CoreError
}
