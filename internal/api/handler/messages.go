package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bloodlink/backend/internal/apperr"
)

type sendMessageRequest struct {
	ReceiverID string         `json:"receiverId"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta"`
}

// SendMessage persists a message and fans it out to both participants.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.InvalidArgument.New("malformed request body"))
		return
	}

	msg, err := h.Chat.SendMessage(c.Request.Context(), currentUser(c), req.ReceiverID, req.Content, req.Meta)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

// ListConversations returns the caller's conversations, newest first.
func (h *Handler) ListConversations(c *gin.Context) {
	conversations, err := h.Chat.ListConversations(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversations": conversations})
}

// GetMessages returns the history with otherUserId and marks the caller's
// incoming messages read.
func (h *Handler) GetMessages(c *gin.Context) {
	messages, err := h.Chat.GetMessages(c.Request.Context(), currentUser(c), c.Param("otherUserId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": messages})
}
