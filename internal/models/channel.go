package models

import (
	"time"

	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */

// Channel is a named communication room with an owning uid and the media
// token last issued for it.
type Channel struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	OwnerUID string `gorm:"not null" json:"ownerUid"`
	Token    string `gorm:"not null" json:"-"`
}

/** -------------------- DTOs -------------------- */

type CreateChannelRequest struct {
	Name     string `json:"name" binding:"required"`
	OwnerUID string `json:"ownerUid" binding:"required"`
}

type UpdateTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type ChannelResponse struct {
	Name      string    `json:"name"`
	OwnerUID  string    `json:"ownerUid"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChannelDetailResponse struct {
	Name      string           `json:"name"`
	OwnerUID  string           `json:"ownerUid"`
	Token     string           `json:"token"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Members   []MemberResponse `json:"members"`
}

type CreateChannelResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ActiveCountResponse struct {
	Channel     string `json:"channel"`
	ActiveCount int    `json:"activeCount"`
}
