package lifecycle

import (
	"errors"
	"time"

	"github.com/ManuelReschke/DeskFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations the reconciler and sweeper need.
// Getters for optional relationships return (nil, nil) when no row exists;
// a missing row is "no relationship", not an error.
type Repository interface {
	GetUser(userID uint) (*models.User, error)
	DeleteUser(userID uint) error
	ListUserIDs() ([]uint, error)

	GetTrial(userID uint) (*models.TrialRecord, error)
	CreateTrial(trial *models.TrialRecord) error
	SaveTrial(trial *models.TrialRecord) error
	DeleteTrial(userID uint) error
	CountTrialsByStatus(status string) (int64, error)
	ListDeletionScheduled(endedBefore time.Time) ([]uint, error)

	GetBillingLinkage(userID uint) (*models.BillingLinkage, error)
	GetWorkspaceAccount(userID uint) (*models.WorkspaceAccount, error)
	MarkWorkspaceDeleted(userID uint) error

	GetAccountState(userID uint) (*models.AccountState, error)
	SaveAccountState(state *models.AccountState) error
	DeleteAccountState(userID uint) error

	// WithUserLock runs fn inside a transaction holding a row lock scoped to
	// the user, serializing concurrent reconciliations of the same account.
	// Cross-user operations need no coordination.
	WithUserLock(userID uint, fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a lifecycle repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUser(userID uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) DeleteUser(userID uint) error {
	return r.db.Delete(&models.User{}, userID).Error
}

func (r *gormRepository) ListUserIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *gormRepository) GetTrial(userID uint) (*models.TrialRecord, error) {
	var trial models.TrialRecord
	err := r.db.Where("user_id = ?", userID).First(&trial).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trial, nil
}

func (r *gormRepository) CreateTrial(trial *models.TrialRecord) error {
	return r.db.Create(trial).Error
}

func (r *gormRepository) SaveTrial(trial *models.TrialRecord) error {
	return r.db.Save(trial).Error
}

func (r *gormRepository) DeleteTrial(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.TrialRecord{}).Error
}

func (r *gormRepository) CountTrialsByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.TrialRecord{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (r *gormRepository) ListDeletionScheduled(endedBefore time.Time) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.TrialRecord{}).
		Where("status = ? AND end_time < ?", models.TrialStatusScheduledForDeletion, endedBefore).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *gormRepository) GetBillingLinkage(userID uint) (*models.BillingLinkage, error) {
	var linkage models.BillingLinkage
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").First(&linkage).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &linkage, nil
}

func (r *gormRepository) GetWorkspaceAccount(userID uint) (*models.WorkspaceAccount, error) {
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

func (r *gormRepository) MarkWorkspaceDeleted(userID uint) error {
	return r.db.Model(&models.WorkspaceAccount{}).
		Where("user_id = ?", userID).
		Update("status", models.WorkspaceStatusDeleted).Error
}

func (r *gormRepository) GetAccountState(userID uint) (*models.AccountState, error) {
	var state models.AccountState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *gormRepository) SaveAccountState(state *models.AccountState) error {
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

func (r *gormRepository) DeleteAccountState(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.AccountState{}).Error
}

func (r *gormRepository) WithUserLock(userID uint, fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Lock the trial row as the per-user mutual-exclusion scope. Accounts
		// without a trial row yet fall back to locking the user row.
		var trial models.TrialRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&trial).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			var user models.User
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&user, userID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		return fn(&gormRepository{db: tx})
	})
}
