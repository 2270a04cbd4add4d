package postgres

import (
	"channel-service/internal/models"

	"gorm.io/gorm"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db}
}

func (r *ChatRepository) Save(chat *models.Chat) error {
	return r.db.Create(chat).Error
}

// ListByChannel returns chat history for a channel with time-based
// pagination for infinite scroll: messages older than the "before" unix
// timestamp, newest page first, returned in chronological order.
func (r *ChatRepository) ListByChannel(channelName string, limit int, before *int64) ([]models.Chat, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	db := r.db.Where("channel_name = ?", channelName)
	if before != nil {
		db = db.Where("created_at < to_timestamp(?)", *before)
	}

	var messages []models.Chat
	err := db.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
