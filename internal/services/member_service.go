package services

import (
	"errors"
	"fmt"

	"channel-service/internal/models"
	"channel-service/internal/repositories/postgres"

	"gorm.io/gorm"
)

type MemberService struct {
	channels *postgres.ChannelRepository
	members  *postgres.MemberRepository
}

func NewMemberService(channels *postgres.ChannelRepository, members *postgres.MemberRepository) *MemberService {
	return &MemberService{channels: channels, members: members}
}

// AddMember registers a participant on a channel. Members start inactive;
// the presence core flips the flag when they actually join.
func (s *MemberService) AddMember(channelName string, req models.AddMemberRequest) (*models.MemberResponse, error) {
	if _, err := s.channels.GetByName(channelName); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	if _, err := s.members.GetByChannelAndID(channelName, req.MemberID); err == nil {
		return nil, ErrMemberExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	member := &models.ChannelMember{
		ChannelName: channelName,
		MemberID:    req.MemberID,
		Name:        req.Name,
		ProfilePic:  req.ProfilePic,
		Active:      false,
	}
	if err := s.members.Add(member); err != nil {
		return nil, fmt.Errorf("add member %s to %s: %w", req.MemberID, channelName, err)
	}
	return &models.MemberResponse{
		MemberID:   member.MemberID,
		Name:       member.Name,
		ProfilePic: member.ProfilePic,
		Active:     member.Active,
		CreatedAt:  member.CreatedAt,
	}, nil
}

func (s *MemberService) RemoveMember(channelName, memberID string) error {
	if _, err := s.channels.GetByName(channelName); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChannelNotFound
		}
		return err
	}
	if err := s.members.Remove(channelName, memberID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	return nil
}
