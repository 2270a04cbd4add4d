package handlers

import (
	"errors"
	"net/http"

	"channel-service/internal/models"
	"channel-service/internal/services"

	"github.com/gin-gonic/gin"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

func (h *MemberHandler) AddMember(c *gin.Context) {
	name := c.Param("name")
	var req models.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.memberService.AddMember(name, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChannelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		case errors.Is(err, services.ErrMemberExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Member already exists in channel"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		}
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *MemberHandler) RemoveMember(c *gin.Context) {
	name := c.Param("name")
	memberID := c.Param("memberId")

	if err := h.memberService.RemoveMember(name, memberID); err != nil {
		switch {
		case errors.Is(err, services.ErrChannelNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		case errors.Is(err, services.ErrMemberNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found in channel"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
