package services

import (
	"context"
	"encoding/json"
	"fmt"

	"channel-service/internal/models"
	"channel-service/internal/repositories/postgres"
)

// chatPayload is the wire shape fanned out to a room for a chat message.
type chatPayload struct {
	Type     string `json:"type"`
	Channel  string `json:"channel"`
	MemberID string `json:"memberId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sentAt"`
}

type ChatService struct {
	chats *postgres.ChatRepository
}

func NewChatService(chats *postgres.ChatRepository) *ChatService {
	return &ChatService{chats: chats}
}

// HandleChat persists a message and returns the payload to broadcast.
// Persistence comes first: a message the room saw but history lost would
// be worse than a delivery failure the sender gets told about.
func (s *ChatService) HandleChat(ctx context.Context, channel, memberID, name, text string) ([]byte, error) {
	chat := &models.Chat{
		ChannelName: channel,
		MemberID:    memberID,
		Name:        name,
		Text:        text,
	}
	if err := s.chats.Save(chat); err != nil {
		return nil, fmt.Errorf("save chat for %s: %w", channel, err)
	}

	return json.Marshal(chatPayload{
		Type:     "channel.message",
		Channel:  channel,
		MemberID: memberID,
		Name:     name,
		Text:     text,
		SentAt:   chat.CreatedAt.Unix(),
	})
}

// History returns a channel's chat messages in chronological order.
func (s *ChatService) History(channel string, limit int, before *int64) ([]models.ChatResponse, error) {
	messages, err := s.chats.ListByChannel(channel, limit, before)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, models.ChatResponse{
			ID:          m.ID,
			ChannelName: m.ChannelName,
			MemberID:    m.MemberID,
			Name:        m.Name,
			Text:        m.Text,
			SentAt:      m.CreatedAt,
		})
	}
	return out, nil
}
