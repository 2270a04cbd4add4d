package models

import (
	"time"

	"gorm.io/gorm"
)

// ChannelMember is a durable participant record scoped to a channel. The
// Active flag is a best-effort audit trail written by the presence core;
// live counts always come from the in-memory presence table.
type ChannelMember struct {
	gorm.Model
	ChannelName string `gorm:"uniqueIndex:idx_channel_member;not null" json:"channelName"`
	MemberID    string `gorm:"uniqueIndex:idx_channel_member;not null" json:"memberId"`
	Name        string `gorm:"not null" json:"name"`
	ProfilePic  string `json:"profilePic,omitempty"`
	Active      bool   `gorm:"default:false" json:"active"`
}

/** -------------------- DTOs -------------------- */

type AddMemberRequest struct {
	Name       string `json:"name" binding:"required"`
	MemberID   string `json:"memberId" binding:"required"`
	ProfilePic string `json:"profilePic,omitempty"`
}

type MemberResponse struct {
	MemberID   string    `json:"memberId"`
	Name       string    `json:"name"`
	ProfilePic string    `json:"profilePic,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}
