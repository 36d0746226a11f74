package models

import "time"

// Access levels the classifier can assign.
const (
	AccessLevelNone       = "none"
	AccessLevelTrial      = "trial"
	AccessLevelPro        = "pro"
	AccessLevelEnterprise = "enterprise"
	AccessLevelSuspended  = "suspended"
)

// Account statuses reported in the derived state.
const (
	AccountStatusSubscriptionActive   = "subscription_active"
	AccountStatusSubscriptionTrialing = "subscription_trialing"
	AccountStatusSubscriptionPastDue  = "subscription_past_due"
	AccountStatusSubscriptionCanceled = "subscription_canceled"
	AccountStatusTrialActive          = "trial_active"
	AccountStatusTrialExpired         = "trial_expired"
)

// AccountState is the reconciliation output: a denormalized, per-user access
// summary. It is a cache, never a source of truth, and is entirely
// recomputable from the trial, billing and workspace rows.
type AccountState struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	AccountStatus      string    `gorm:"type:varchar(50);not null" json:"account_status"`
	AccessLevel        string    `gorm:"type:varchar(32);not null;default:'none'" json:"access_level"`
	HasAccess          bool      `gorm:"default:false;index" json:"has_access"`
	TrialDaysRemaining int       `gorm:"default:0" json:"trial_days_remaining"`
	LastSyncedAt       time.Time `gorm:"not null" json:"last_synced_at"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
