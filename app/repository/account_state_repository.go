package repository

import (
	"github.com/ManuelReschke/DeskFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountStateRepository struct {
	db *gorm.DB
}

// NewAccountStateRepository creates a new account state repository instance
func NewAccountStateRepository(db *gorm.DB) AccountStateRepository {
	return &accountStateRepository{db: db}
}

func (r *accountStateRepository) GetByUserID(userID uint) (*models.AccountState, error) {
	var state models.AccountState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *accountStateRepository) Upsert(state *models.AccountState) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"account_status",
			"access_level",
			"has_access",
			"trial_days_remaining",
			"last_synced_at",
			"updated_at",
		}),
	}).Create(state).Error; err != nil {
		return err
	}

	return r.db.Where("user_id = ?", state.UserID).First(state).Error
}

func (r *accountStateRepository) DeleteByUserID(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.AccountState{}).Error
}
