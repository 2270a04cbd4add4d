package handlers

import (
	"errors"
	"net/http"

	"channel-service/internal/models"
	"channel-service/internal/presence"
	"channel-service/internal/services"

	"github.com/gin-gonic/gin"
)

type ChannelHandler struct {
	channelService *services.ChannelService
	session        *presence.Manager
}

func NewChannelHandler(channelService *services.ChannelService, session *presence.Manager) *ChannelHandler {
	return &ChannelHandler{channelService: channelService, session: session}
}

// CreateChannel creates a channel and returns its media token. Creating a
// channel that already exists returns the stored token, so clients can
// retry blindly.
func (h *ChannelHandler) CreateChannel(c *gin.Context) {
	var req models.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, created, err := h.channelService.CreateChannel(req.Name, req.OwnerUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create channel"})
		return
	}

	status := http.StatusOK
	message := "Channel already exists"
	if created {
		status = http.StatusCreated
		message = "Channel created"
	}
	c.JSON(status, models.CreateChannelResponse{Message: message, Token: token})
}

func (h *ChannelHandler) GetChannels(c *gin.Context) {
	channels, err := h.channelService.ListChannels()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list channels"})
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (h *ChannelHandler) GetChannelByName(c *gin.Context) {
	name := c.Param("name")
	channel, err := h.channelService.GetChannel(name)
	if err != nil {
		if errors.Is(err, services.ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get channel"})
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (h *ChannelHandler) UpdateToken(c *gin.Context) {
	name := c.Param("name")
	var req models.UpdateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.channelService.UpdateToken(name, req.Token); err != nil {
		if errors.Is(err, services.ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Token updated"})
}

// GetActiveCount answers the out-of-band active-member query from the
// live presence table, not from persisted flags.
func (h *ChannelHandler) GetActiveCount(c *gin.Context) {
	name := c.Param("name")
	c.JSON(http.StatusOK, models.ActiveCountResponse{
		Channel:     name,
		ActiveCount: h.session.ActiveCount(name),
	})
}
