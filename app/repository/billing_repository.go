package repository

import (
	"errors"
	"time"

	"github.com/ManuelReschke/DeskFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type billingRepository struct {
	db *gorm.DB
}

// NewBillingRepository creates a new billing repository instance
func NewBillingRepository(db *gorm.DB) BillingRepository {
	return &billingRepository{db: db}
}

// GetLinkageByUserID returns the live linkage for a user, or (nil, nil) when
// the user has no billing relationship.
func (r *billingRepository) GetLinkageByUserID(userID uint) (*models.BillingLinkage, error) {
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

// GetLinkageByCustomerID resolves a provider customer to the local linkage.
func (r *billingRepository) GetLinkageByCustomerID(provider, externalCustomerID string) (*models.BillingLinkage, error) {
	var linkage models.BillingLinkage
	err := r.db.Where("provider = ? AND external_customer_id = ?", provider, externalCustomerID).
		First(&linkage).Error
	if err != nil {
		return nil, err
	}
	return &linkage, nil
}

func (r *billingRepository) UpsertLinkage(linkage *models.BillingLinkage) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "external_customer_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"external_subscription_id",
			"status",
			"internal_plan",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(linkage).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND external_customer_id = ?", linkage.Provider, linkage.ExternalCustomerID).
		First(linkage).Error
}

func (r *billingRepository) FindActivePlanMapping(provider, providerPlanRef string) (*models.BillingPlanMapping, error) {
	var m models.BillingPlanMapping
	err := r.db.
		Where("provider = ? AND provider_plan_ref = ? AND is_active = ?", provider, providerPlanRef, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *billingRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *billingRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *billingRepository) CountLinkagesByStatus(statuses ...string) (int64, error) {
	var count int64
	err := r.db.Model(&models.BillingLinkage{}).Where("status IN ?", statuses).Count(&count).Error
	return count, err
}
