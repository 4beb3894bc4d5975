package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"
	InboundTypeMsg   = "msg"
	InboundTypeFile  = "file"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventHello   = "hello"
	EventMessage = "message"
	EventFile    = "file"
)

// HelloData is sent by the client to declare its identity.
type HelloData struct {
	User     string `json:"user"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// MsgData is a text message from the client.
type MsgData struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// FileData is a file attachment from the client.
type FileData struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	FileData string `json:"file_data"`
	FileName string `json:"file_name"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventHelloData acknowledges a hello.
type EventHelloData struct {
	User     string `json:"user"`
	Protocol int    `json:"protocol"`
}

// EventMessageData is a new text message, pushed to sender and receiver devices.
type EventMessageData struct {
	ID       int64  `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
	TS       int64  `json:"ts"`
}

// EventFileData is a new file attachment, pushed to sender and receiver devices.
type EventFileData struct {
	ID       int64  `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	FileData string `json:"file_data"`
	FileName string `json:"file_name"`
	TS       int64  `json:"ts"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
