package lifecycle

import (
	"time"

	"github.com/ManuelReschke/DeskFox/app/models"
)

// Decision is the authoritative access summary computed by Classify.
type Decision struct {
	AccessLevel        string
	HasAccess          bool
	AccountStatus      string
	TrialDaysRemaining int
}

// Classify computes the access decision from the three raw inputs. Pure and
// total: nil inputs mean "no relationship" and never fail. Billing state is
// the stronger signal and always overrides trial state; trial state only
// matters when there is no actionable billing relationship.
func Classify(trial *models.TrialRecord, billing *models.BillingLinkage, workspace *models.WorkspaceAccount, now time.Time) Decision {
	_ = workspace // workspace status is reported alongside, never part of the decision

	if billing != nil {
		switch billing.Status {
		case models.BillingStatusActive:
			return Decision{
				AccessLevel:   paidAccessLevel(billing),
				HasAccess:     true,
				AccountStatus: models.AccountStatusSubscriptionActive,
			}
		case models.BillingStatusTrialing:
			return Decision{
				AccessLevel:   paidAccessLevel(billing),
				HasAccess:     true,
				AccountStatus: models.AccountStatusSubscriptionTrialing,
			}
		case models.BillingStatusPastDue:
			return Decision{
				AccessLevel:   models.AccessLevelSuspended,
				HasAccess:     false,
				AccountStatus: models.AccountStatusSubscriptionPastDue,
			}
		case models.BillingStatusCanceled, models.BillingStatusUnpaid:
			// Canceled subscriptions fall back to trial evaluation, even when
			// current_period_end is still in the future.
			d := trialDecision(trial, billing, now)
			d.AccountStatus = models.AccountStatusSubscriptionCanceled
			return d
		}
	}

	return trialDecision(trial, billing, now)
}

// trialDecision evaluates access purely from the trial window.
func trialDecision(trial *models.TrialRecord, billing *models.BillingLinkage, now time.Time) Decision {
	if trial != nil && trial.Status == models.TrialStatusActive && trial.EndTime.After(now) {
		return Decision{
			AccessLevel:        models.AccessLevelTrial,
			HasAccess:          true,
			AccountStatus:      models.AccountStatusTrialActive,
			TrialDaysRemaining: daysRemaining(trial.EndTime, now),
		}
	}

	level := models.AccessLevelNone
	if previouslyPaid(trial, billing) {
		level = models.AccessLevelSuspended
	}
	return Decision{
		AccessLevel:   level,
		HasAccess:     false,
		AccountStatus: models.AccountStatusTrialExpired,
	}
}

// paidAccessLevel maps the linkage's internal plan to an access level.
func paidAccessLevel(billing *models.BillingLinkage) string {
	if billing.InternalPlan == models.AccessLevelEnterprise {
		return models.AccessLevelEnterprise
	}
	return models.AccessLevelPro
}

// previouslyPaid reports whether the account once held a paid relationship.
func previouslyPaid(trial *models.TrialRecord, billing *models.BillingLinkage) bool {
	if trial != nil && trial.Status == models.TrialStatusConvertedToPaid {
		return true
	}
	if billing == nil {
		return false
	}
	switch billing.Status {
	case models.BillingStatusCanceled,
		models.BillingStatusUnpaid,
		models.BillingStatusPaused,
		models.BillingStatusIncompleteExpired:
		return true
	default:
		return false
	}
}

// daysRemaining counts whole days left until end, rounding partial days up.
func daysRemaining(end, now time.Time) int {
	if !end.After(now) {
		return 0
	}
	d := end.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}
