package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeNotIdentified     = "not_identified"
	ErrCodeAlreadyIdentified = "already_identified"
	ErrCodeStorage           = "storage_error"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeInternal          = "internal"
)

var (
	// ErrValidation marks a malformed send event.
	ErrValidation = errors.New("invalid message")
	// ErrStorage marks a send that could not be persisted.
	ErrStorage = errors.New("storage unavailable")
	// ErrNotIdentified is returned when a connection sends before saying hello.
	ErrNotIdentified = errors.New("connection has not declared identity")
	// ErrAlreadyIdentified is returned when a connection tries to change identity.
	ErrAlreadyIdentified = errors.New("connection already bound to another user")
	// ErrClientClosed is returned when a disconnected client tries to join presence.
	ErrClientClosed = errors.New("connection closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorFor maps a domain error to the client-visible error.
func ErrorFor(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrValidation):
		return coreError(ErrCodeBadRequest, err.Error())
	case errors.Is(err, ErrStorage):
		return coreError(ErrCodeStorage, "message could not be stored")
	case errors.Is(err, ErrNotIdentified):
		return coreError(ErrCodeNotIdentified, "send hello first")
	case errors.Is(err, ErrAlreadyIdentified):
		return coreError(ErrCodeAlreadyIdentified, err.Error())
	case errors.Is(err, ErrClientClosed):
		return coreError(ErrCodeUnauthorized, "session ended")
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}
