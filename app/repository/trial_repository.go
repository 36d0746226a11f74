package repository

import (
	"github.com/ManuelReschke/DeskFox/app/models"
	"gorm.io/gorm"
)

type trialRepository struct {
	db *gorm.DB
}

// NewTrialRepository creates a new trial repository instance
func NewTrialRepository(db *gorm.DB) TrialRepository {
	return &trialRepository{db: db}
}

func (r *trialRepository) Create(trial *models.TrialRecord) error {
	return r.db.Create(trial).Error
}

func (r *trialRepository) GetByUserID(userID uint) (*models.TrialRecord, error) {
	var trial models.TrialRecord
	err := r.db.Where("user_id = ?", userID).First(&trial).Error
	if err != nil {
		return nil, err
	}
	return &trial, nil
}

func (r *trialRepository) Save(trial *models.TrialRecord) error {
	return r.db.Save(trial).Error
}

func (r *trialRepository) DeleteByUserID(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.TrialRecord{}).Error
}

func (r *trialRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.TrialRecord{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
