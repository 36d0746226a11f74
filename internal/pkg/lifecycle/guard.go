package lifecycle

import (
	"strings"

	"github.com/ManuelReschke/DeskFox/app/models"
)

// ProtectedAdminEmail is the fixed administrative identity that is never
// expired, never scheduled for deletion and never swept, regardless of
// billing or trial state.
const ProtectedAdminEmail = "admin@deskfox.app"

// Protection reasons reported by VerifyProtection.
const (
	ProtectionReasonAdminIdentity = "admin_identity"
	ProtectionReasonAdminRole     = "admin_role"
	ProtectionReasonBillingActive = "billing_active"
	ProtectionReasonNone          = "not_protected"
)

// IsProtected reports whether the account is exempt from every destructive
// lifecycle transition. It must be re-checked immediately before any write
// that reduces access or schedules/executes deletion, because billing state
// can change between read and write under concurrent webhook delivery.
func IsProtected(user *models.User, billing *models.BillingLinkage) bool {
	protected, _ := VerifyProtection(user, billing)
	return protected
}

// VerifyProtection returns the protection decision together with its reason.
func VerifyProtection(user *models.User, billing *models.BillingLinkage) (bool, string) {
	if user != nil {
		if strings.EqualFold(user.Email, ProtectedAdminEmail) {
			return true, ProtectionReasonAdminIdentity
		}
		if user.IsAdmin() {
			return true, ProtectionReasonAdminRole
		}
	}
	if billing.IsEntitling() {
		return true, ProtectionReasonBillingActive
	}
	return false, ProtectionReasonNone
}
