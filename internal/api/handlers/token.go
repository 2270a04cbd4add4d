package handlers

import (
	"errors"
	"net/http"

	"channel-service/internal/models"
	"channel-service/internal/services"

	"github.com/gin-gonic/gin"
)

type TokenHandler struct {
	channelService *services.ChannelService
}

func NewTokenHandler(channelService *services.ChannelService) *TokenHandler {
	return &TokenHandler{channelService: channelService}
}

// GetToken regenerates a channel's media token for its owner. The uid
// query parameter must match the channel's owner uid.
func (h *TokenHandler) GetToken(c *gin.Context) {
	channelName := c.Query("channelName")
	uid := c.Query("uid")
	if channelName == "" || uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channelName and uid query parameters are required"})
		return
	}

	token, err := h.channelService.RefreshToken(channelName, uid)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChannelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		case errors.Is(err, services.ErrOwnerMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "uid does not match the channel owner"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		}
		return
	}
	c.JSON(http.StatusOK, models.TokenResponse{Token: token})
}
