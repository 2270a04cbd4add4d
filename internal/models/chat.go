package models

import (
	"time"

	"gorm.io/gorm"
)

// Chat is one persisted message in a channel's history.
type Chat struct {
	gorm.Model
	ChannelName string `gorm:"index;not null" json:"channelName"`
	MemberID    string `gorm:"not null" json:"memberId"`
	Name        string `gorm:"not null" json:"name"`
	Text        string `gorm:"not null" json:"text"`
}

/** -------------------- DTOs -------------------- */

type ChatResponse struct {
	ID          uint      `json:"id"`
	ChannelName string    `json:"channelName"`
	MemberID    string    `json:"memberId"`
	Name        string    `json:"name"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sentAt"`
}
