package postgres

import (
	"channel-service/internal/models"

	"gorm.io/gorm"
)

type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db}
}

func (r *ChannelRepository) Create(channel *models.Channel) error {
	return r.db.Create(channel).Error
}

func (r *ChannelRepository) GetByName(name string) (*models.Channel, error) {
	var c models.Channel
	err := r.db.Where("name = ?", name).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChannelRepository) GetAll() ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.Order("created_at DESC").Find(&channels).Error
	return channels, err
}

func (r *ChannelRepository) UpdateToken(name, token string) error {
	result := r.db.Model(&models.Channel{}).Where("name = ?", name).Update("token", token)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
