package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate")
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Avatar       string
	CreatedAt    time.Time
}

// Session is an authenticated login. It lives from login until logout.
type Session struct {
	ID        string // UUID, carried as the token's jti
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Message represents a persisted direct message.
// Exactly one of Content or FileData is set.
type Message struct {
	ID        int64
	Sender    string
	Receiver  string
	Content   *string
	FileData  *string
	FileName  *string
	CreatedAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user. Returns ErrDuplicate if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash, avatar string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers returns up to limit users whose username contains query.
	SearchUsers(ctx context.Context, query string, limit int) ([]*User, error)
}

// SessionStore handles login session persistence.
type SessionStore interface {
	// CreateSession records a new session.
	CreateSession(ctx context.Context, sess *Session) error

	// GetSession retrieves a live session by ID.
	GetSession(ctx context.Context, id string) (*Session, error)

	// DeleteSession removes a session. Returns ErrNotFound if it was already gone.
	DeleteSession(ctx context.Context, id string) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage inserts msg, setting its ID and CreatedAt.
	AppendMessage(ctx context.Context, msg *Message) error

	// History returns every message exchanged between a and b, oldest first.
	History(ctx context.Context, a, b string) ([]*Message, error)

	// PurgeUserMessages deletes every message sent or received by username
	// and reports how many were removed.
	PurgeUserMessages(ctx context.Context, username string) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	SessionStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
