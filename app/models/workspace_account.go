package models

import "time"

// Workspace account states at the external provider.
const (
	WorkspaceStatusActive    = "active"
	WorkspaceStatusSuspended = "suspended"
	WorkspaceStatusDeleted   = "deleted"
)

// WorkspaceAccount connects a local user to the external product account the
// user actually operates. Written by the workspace collaborator after
// successful provisioning; the reconciler only reads it.
type WorkspaceAccount struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	ExternalAccountID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_account_id"`
	ExternalEmail     string    `gorm:"type:varchar(200);not null" json:"external_email"`
	Status            string    `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
