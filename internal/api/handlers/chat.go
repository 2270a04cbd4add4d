package handlers

import (
	"net/http"
	"strconv"

	"channel-service/internal/services"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *services.ChatService
}

func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// GetChannelMessages returns chat history for a channel in chronological
// order, paginated by a unix "before" timestamp for infinite scroll.
func (h *ChatHandler) GetChannelMessages(c *gin.Context) {
	name := c.Param("name")

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		limit = n
	}

	var before *int64
	if v := c.Query("before"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before parameter"})
			return
		}
		before = &ts
	}

	messages, err := h.chatService.History(name, limit, before)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}
