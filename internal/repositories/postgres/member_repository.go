package postgres

import (
	"channel-service/internal/models"

	"gorm.io/gorm"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db}
}

func (r *MemberRepository) Add(member *models.ChannelMember) error {
	return r.db.Create(member).Error
}

func (r *MemberRepository) Remove(channelName, memberID string) error {
	result := r.db.Where("channel_name = ? AND member_id = ?", channelName, memberID).
		Delete(&models.ChannelMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *MemberRepository) GetByChannelAndID(channelName, memberID string) (*models.ChannelMember, error) {
	var m models.ChannelMember
	err := r.db.Where("channel_name = ? AND member_id = ?", channelName, memberID).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) ListByChannel(channelName string) ([]models.ChannelMember, error) {
	var members []models.ChannelMember
	err := r.db.Where("channel_name = ?", channelName).Order("created_at ASC").Find(&members).Error
	return members, err
}

func (r *MemberRepository) SetActive(channelName, memberID string, active bool) error {
	return r.db.Model(&models.ChannelMember{}).
		Where("channel_name = ? AND member_id = ?", channelName, memberID).
		Update("active", active).Error
}

// ClearAllActive resets every persisted active flag. Runs once at startup:
// the in-memory presence table is authoritative for live counts, so after
// a restart any surviving flags are stale by definition.
func (r *MemberRepository) ClearAllActive() error {
	return r.db.Model(&models.ChannelMember{}).Where("active = ?", true).Update("active", false).Error
}
