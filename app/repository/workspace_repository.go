package repository

import (
	"errors"

	"github.com/ManuelReschke/DeskFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type workspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository creates a new workspace repository instance
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &workspaceRepository{db: db}
}

// GetByUserID returns the workspace linkage for a user, or (nil, nil) when
// no workspace account was ever provisioned.
func (r *workspaceRepository) GetByUserID(userID uint) (*models.WorkspaceAccount, error) {
	var account models.WorkspaceAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *workspaceRepository) Upsert(account *models.WorkspaceAccount) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_account_id",
			"external_email",
			"status",
			"updated_at",
		}),
	}).Create(account).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ?", account.UserID).First(account).Error
}

func (r *workspaceRepository) MarkDeleted(userID uint) error {
	return r.db.Model(&models.WorkspaceAccount{}).
		Where("user_id = ?", userID).
		Update("status", models.WorkspaceStatusDeleted).Error
}

func (r *workspaceRepository) CountLinked() (int64, error) {
	var count int64
	err := r.db.Model(&models.WorkspaceAccount{}).
		Where("status != ?", models.WorkspaceStatusDeleted).
		Count(&count).Error
	return count, err
}
