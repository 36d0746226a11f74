package models

import (
	"time"

	"gorm.io/gorm"
)

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

// Subscription statuses as mirrored from the billing provider.
const (
	BillingStatusNotStarted        = "not_started"
	BillingStatusIncomplete        = "incomplete"
	BillingStatusIncompleteExpired = "incomplete_expired"
	BillingStatusTrialing          = "trialing"
	BillingStatusActive            = "active"
	BillingStatusPastDue           = "past_due"
	BillingStatusCanceled          = "canceled"
	BillingStatusUnpaid            = "unpaid"
	BillingStatusPaused            = "paused"
)

// BillingLinkage connects a local user to an external payment/subscription
// relationship. At most one live row per user; replaced rows are tombstoned
// via soft delete to keep audit history. Written by the billing webhook
// collaborator, read-only to the reconciler.
type BillingLinkage struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	UserID                 uint           `gorm:"not null;index" json:"user_id"`
	Provider               string         `gorm:"type:varchar(20);not null;default:'stripe';index:ux_billing_linkages_provider_customer,unique,priority:1" json:"provider"`
	ExternalCustomerID     string         `gorm:"type:varchar(191);not null;index:ux_billing_linkages_provider_customer,unique,priority:2" json:"external_customer_id"`
	ExternalSubscriptionID string         `gorm:"type:varchar(191);default:null;index" json:"external_subscription_id,omitempty"`
	Status                 string         `gorm:"type:varchar(32);not null;default:'not_started';index" json:"status"`
	InternalPlan           string         `gorm:"type:varchar(50);not null;default:'pro'" json:"internal_plan"`
	CurrentPeriodStart     *time.Time     `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time     `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool           `gorm:"default:false" json:"cancel_at_period_end"`
	RawPayloadJSON         string         `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt              time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsEntitling reports whether the mirrored status grants paid access on its
// own. Only active and trialing count; past_due suspends, everything else
// falls back to trial evaluation.
func (b *BillingLinkage) IsEntitling() bool {
	if b == nil {
		return false
	}
	switch b.Status {
	case BillingStatusActive, BillingStatusTrialing:
		return true
	default:
		return false
	}
}
