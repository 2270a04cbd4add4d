package services

import (
	"errors"
	"fmt"

	"channel-service/internal/models"
	"channel-service/internal/repositories/postgres"

	"gorm.io/gorm"
)

type ChannelService struct {
	channels *postgres.ChannelRepository
	members  *postgres.MemberRepository
	tokens   *TokenService
}

func NewChannelService(channels *postgres.ChannelRepository, members *postgres.MemberRepository, tokens *TokenService) *ChannelService {
	return &ChannelService{channels: channels, members: members, tokens: tokens}
}

// CreateChannel creates a channel and issues its first media token. When
// the channel already exists the stored token is returned instead, so
// creation is safe to retry.
func (s *ChannelService) CreateChannel(name, ownerUID string) (token string, created bool, err error) {
	existing, err := s.channels.GetByName(name)
	if err == nil {
		return existing.Token, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, fmt.Errorf("check channel %s: %w", name, err)
	}

	token, err = s.tokens.Issue(name, ownerUID)
	if err != nil {
		return "", false, err
	}
	channel := &models.Channel{Name: name, OwnerUID: ownerUID, Token: token}
	if err := s.channels.Create(channel); err != nil {
		return "", false, fmt.Errorf("create channel %s: %w", name, err)
	}
	return token, true, nil
}

func (s *ChannelService) ListChannels() ([]models.ChannelResponse, error) {
	channels, err := s.channels.GetAll()
	if err != nil {
		return nil, err
	}
	out := make([]models.ChannelResponse, 0, len(channels))
	for _, c := range channels {
		out = append(out, models.ChannelResponse{
			Name:      c.Name,
			OwnerUID:  c.OwnerUID,
			CreatedAt: c.CreatedAt,
		})
	}
	return out, nil
}

func (s *ChannelService) GetChannel(name string) (*models.ChannelDetailResponse, error) {
	channel, err := s.channels.GetByName(name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	members, err := s.members.ListByChannel(name)
	if err != nil {
		return nil, err
	}

	resp := &models.ChannelDetailResponse{
		Name:      channel.Name,
		OwnerUID:  channel.OwnerUID,
		Token:     channel.Token,
		CreatedAt: channel.CreatedAt,
		UpdatedAt: channel.UpdatedAt,
		Members:   make([]models.MemberResponse, 0, len(members)),
	}
	for _, m := range members {
		resp.Members = append(resp.Members, models.MemberResponse{
			MemberID:   m.MemberID,
			Name:       m.Name,
			ProfilePic: m.ProfilePic,
			Active:     m.Active,
			CreatedAt:  m.CreatedAt,
		})
	}
	return resp, nil
}

// UpdateToken stores an externally generated token for a channel.
func (s *ChannelService) UpdateToken(name, token string) error {
	if err := s.channels.UpdateToken(name, token); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return err
	}
	return nil
}

// RefreshToken regenerates the media token for a channel owner. The uid
// must match the channel's owner uid.
func (s *ChannelService) RefreshToken(name, uid string) (string, error) {
	channel, err := s.channels.GetByName(name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrChannelNotFound
		}
		return "", err
	}
	if channel.OwnerUID != uid {
		return "", ErrOwnerMismatch
	}

	token, err := s.tokens.Issue(name, uid)
	if err != nil {
		return "", err
	}
	if err := s.channels.UpdateToken(name, token); err != nil {
		return "", err
	}
	return token, nil
}
