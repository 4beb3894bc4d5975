package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat/internal/store"
)

// MessageHandlers serves conversation history.
type MessageHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.MessageStore, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store: st,
		log:   logger,
	}
}

// MessageResponse is one history entry. Either Content or FileData is set.
type MessageResponse struct {
	ID        int64   `json:"id"`
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Content   *string `json:"content"`
	FileData  *string `json:"file_data"`
	FileName  *string `json:"file_name"`
	CreatedAt string  `json:"created_at"`
	TS        int64   `json:"ts"`
}

// History returns the caller's conversation with another user, oldest first.
// Anonymous callers get an empty list.
// GET /api/messages?with_user=name
func (h *MessageHandlers) History(c *gin.Context) {
	me, ok := currentUsername(c)
	peer := strings.TrimSpace(c.Query("with_user"))
	if !ok || peer == "" {
		c.JSON(http.StatusOK, []MessageResponse{})
		return
	}

	messages, err := h.store.History(c.Request.Context(), me, peer)
	if err != nil {
		h.log.Error().Err(err).Str("user", me).Str("peer", peer).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, MessageResponse{
			ID:        m.ID,
			Sender:    m.Sender,
			Receiver:  m.Receiver,
			Content:   m.Content,
			FileData:  m.FileData,
			FileName:  m.FileName,
			CreatedAt: m.CreatedAt.UTC().Format(timeLayout),
			TS:        m.CreatedAt.Unix(),
		})
	}

	c.JSON(http.StatusOK, response)
}
