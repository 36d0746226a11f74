package billing

import (
	"strings"

	"github.com/ManuelReschke/DeskFox/app/models"
)

func normalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case models.AccessLevelEnterprise:
		return models.AccessLevelEnterprise
	default:
		return models.AccessLevelPro
	}
}

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case models.BillingStatusNotStarted,
		models.BillingStatusIncomplete,
		models.BillingStatusIncompleteExpired,
		models.BillingStatusTrialing,
		models.BillingStatusActive,
		models.BillingStatusPastDue,
		models.BillingStatusCanceled,
		models.BillingStatusUnpaid,
		models.BillingStatusPaused:
		return s
	default:
		return models.BillingStatusIncomplete
	}
}
