package repository

import (
	"github.com/ManuelReschke/DeskFox/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	ListIDs() ([]uint, error)
	Count() (int64, error)
}

// TrialRepository defines the interface for trial-record database operations
type TrialRepository interface {
	Create(trial *models.TrialRecord) error
	GetByUserID(userID uint) (*models.TrialRecord, error)
	Save(trial *models.TrialRecord) error
	DeleteByUserID(userID uint) error
	CountByStatus(status string) (int64, error)
}

// BillingRepository defines the interface for billing-linkage operations
type BillingRepository interface {
	GetLinkageByUserID(userID uint) (*models.BillingLinkage, error)
	GetLinkageByCustomerID(provider, externalCustomerID string) (*models.BillingLinkage, error)
	UpsertLinkage(linkage *models.BillingLinkage) error
	FindActivePlanMapping(provider, providerPlanRef string) (*models.BillingPlanMapping, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	CountLinkagesByStatus(statuses ...string) (int64, error)
}

// WorkspaceRepository defines the interface for workspace-linkage operations
type WorkspaceRepository interface {
	GetByUserID(userID uint) (*models.WorkspaceAccount, error)
	Upsert(account *models.WorkspaceAccount) error
	MarkDeleted(userID uint) error
	CountLinked() (int64, error)
}

// AccountStateRepository defines the interface for the derived state cache
type AccountStateRepository interface {
	GetByUserID(userID uint) (*models.AccountState, error)
	Upsert(state *models.AccountState) error
	DeleteByUserID(userID uint) error
}
