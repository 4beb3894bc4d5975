package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandIdentify binds the connection to a username.
	CommandIdentify CommandKind = iota
	// CommandSendMessage delivers a text or file message to another user.
	CommandSendMessage
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	User    string
	Message Message
}
