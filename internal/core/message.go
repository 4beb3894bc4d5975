package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/privchat/internal/store"
)

// Message is the domain model for a direct message.
// It carries either Text or File, never both.
type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Text      string
	File      *File
	CreatedAt time.Time
}

// File is an attachment: an opaque encoded blob plus its original name.
type File struct {
	Data string
	Name string
}

// Validate checks that the message has both parties and exactly one payload.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Sender) == "" {
		return fmt.Errorf("%w: sender is required", ErrValidation)
	}
	if strings.TrimSpace(m.Receiver) == "" {
		return fmt.Errorf("%w: receiver is required", ErrValidation)
	}

	hasText := strings.TrimSpace(m.Text) != ""
	switch {
	case hasText && m.File != nil:
		return fmt.Errorf("%w: message carries both text and file", ErrValidation)
	case !hasText && m.File == nil:
		return fmt.Errorf("%w: message has no content", ErrValidation)
	case m.File != nil && (m.File.Data == "" || strings.TrimSpace(m.File.Name) == ""):
		return fmt.Errorf("%w: file data and name are required", ErrValidation)
	}
	return nil
}

// IsFile reports whether the message is an attachment.
func (m *Message) IsFile() bool {
	return m.File != nil
}

func (m *Message) toStore() *store.Message {
	sm := &store.Message{
		Sender:   m.Sender,
		Receiver: m.Receiver,
	}
	if m.File != nil {
		data, name := m.File.Data, m.File.Name
		sm.FileData = &data
		sm.FileName = &name
	} else {
		text := m.Text
		sm.Content = &text
	}
	return sm
}

// MessageFromStore converts a persisted record to the domain model.
func MessageFromStore(sm *store.Message) Message {
	msg := Message{
		ID:        sm.ID,
		Sender:    sm.Sender,
		Receiver:  sm.Receiver,
		CreatedAt: sm.CreatedAt,
	}
	if sm.Content != nil {
		msg.Text = *sm.Content
	}
	if sm.FileData != nil {
		msg.File = &File{Data: *sm.FileData}
		if sm.FileName != nil {
			msg.File.Name = *sm.FileName
		}
	}
	return msg
}
