package services

import (
	"context"
	"errors"
	"fmt"

	"channel-service/internal/presence"
	"channel-service/internal/repositories/postgres"

	"gorm.io/gorm"
)

// IdentityStore adapts the postgres repositories to the presence core's
// Store contract, translating gorm's not-found into the core's sentinel.
type IdentityStore struct {
	channels *postgres.ChannelRepository
	members  *postgres.MemberRepository
}

func NewIdentityStore(channels *postgres.ChannelRepository, members *postgres.MemberRepository) *IdentityStore {
	return &IdentityStore{channels: channels, members: members}
}

func (s *IdentityStore) LookupMember(ctx context.Context, channel, memberID string) (*presence.Member, error) {
	m, err := s.members.GetByChannelAndID(channel, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, presence.ErrNotFound
		}
		return nil, fmt.Errorf("lookup member %s/%s: %w", channel, memberID, err)
	}
	return &presence.Member{ID: m.MemberID, Name: m.Name, ProfilePic: m.ProfilePic}, nil
}

func (s *IdentityStore) LookupChannel(ctx context.Context, channel string) (*presence.ChannelOwner, error) {
	c, err := s.channels.GetByName(channel)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, presence.ErrNotFound
		}
		return nil, fmt.Errorf("lookup channel %s: %w", channel, err)
	}
	return &presence.ChannelOwner{Channel: c.Name, OwnerUID: c.OwnerUID}, nil
}

func (s *IdentityStore) SetMemberActive(ctx context.Context, channel, memberID string, active bool) error {
	if err := s.members.SetActive(channel, memberID, active); err != nil {
		return fmt.Errorf("set active %s/%s=%v: %w", channel, memberID, active, err)
	}
	return nil
}
