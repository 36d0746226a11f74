package lifecycle

import (
	"testing"
	"time"

	"github.com/ManuelReschke/DeskFox/app/models"
)

var classifyNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func activeTrial(daysLeft int) *models.TrialRecord {
	return models.NewTrialRecord(1, classifyNow.AddDate(0, 0, daysLeft-7), 7)
}

func TestClassifyBillingOverridesTrial(t *testing.T) {
	tests := []struct {
		name          string
		billingStatus string
		plan          string
		wantLevel     string
		wantAccess    bool
		wantStatus    string
	}{
		{name: "active pro", billingStatus: models.BillingStatusActive, plan: "pro", wantLevel: models.AccessLevelPro, wantAccess: true, wantStatus: models.AccountStatusSubscriptionActive},
		{name: "active enterprise", billingStatus: models.BillingStatusActive, plan: "enterprise", wantLevel: models.AccessLevelEnterprise, wantAccess: true, wantStatus: models.AccountStatusSubscriptionActive},
		{name: "trialing", billingStatus: models.BillingStatusTrialing, plan: "pro", wantLevel: models.AccessLevelPro, wantAccess: true, wantStatus: models.AccountStatusSubscriptionTrialing},
		{name: "past due suspends", billingStatus: models.BillingStatusPastDue, plan: "pro", wantLevel: models.AccessLevelSuspended, wantAccess: false, wantStatus: models.AccountStatusSubscriptionPastDue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// An expired trial must not matter while billing is decisive.
			trial := models.NewTrialRecord(1, classifyNow.AddDate(0, 0, -30), 7)
			trial.Status = models.TrialStatusExpired

			billing := &models.BillingLinkage{Status: tt.billingStatus, InternalPlan: tt.plan}
			got := Classify(trial, billing, nil, classifyNow)
			if got.AccessLevel != tt.wantLevel || got.HasAccess != tt.wantAccess || got.AccountStatus != tt.wantStatus {
				t.Fatalf("Classify() = %+v, want level=%s access=%v status=%s", got, tt.wantLevel, tt.wantAccess, tt.wantStatus)
			}
		})
	}
}

func TestClassifyCanceledFallsBackToTrial(t *testing.T) {
	billing := &models.BillingLinkage{Status: models.BillingStatusCanceled, InternalPlan: "pro"}

	got := Classify(activeTrial(3), billing, nil, classifyNow)
	if !got.HasAccess || got.AccessLevel != models.AccessLevelTrial {
		t.Fatalf("canceled billing with running trial should keep trial access, got %+v", got)
	}
	if got.AccountStatus != models.AccountStatusSubscriptionCanceled {
		t.Fatalf("account status = %s, want %s", got.AccountStatus, models.AccountStatusSubscriptionCanceled)
	}

	expired := models.NewTrialRecord(1, classifyNow.AddDate(0, 0, -30), 7)
	expired.Status = models.TrialStatusExpired
	got = Classify(expired, billing, nil, classifyNow)
	if got.HasAccess {
		t.Fatalf("canceled billing with expired trial should not grant access, got %+v", got)
	}
	if got.AccessLevel != models.AccessLevelSuspended {
		t.Fatalf("previously paid account should be suspended, not %s", got.AccessLevel)
	}
}

func TestClassifyCanceledWithFuturePeriodEnd(t *testing.T) {
	// A canceled subscription grants nothing on its own, even while the paid
	// period nominally runs on.
	end := classifyNow.AddDate(0, 0, 14)
	billing := &models.BillingLinkage{Status: models.BillingStatusCanceled, CurrentPeriodEnd: &end}

	expired := models.NewTrialRecord(1, classifyNow.AddDate(0, 0, -30), 7)
	expired.Status = models.TrialStatusExpired
	got := Classify(expired, billing, nil, classifyNow)
	if got.HasAccess {
		t.Fatalf("canceled subscription must not grant access, got %+v", got)
	}
}

func TestClassifyTrialOnly(t *testing.T) {
	got := Classify(activeTrial(3), nil, nil, classifyNow)
	if !got.HasAccess || got.AccessLevel != models.AccessLevelTrial {
		t.Fatalf("running trial should grant trial access, got %+v", got)
	}
	if got.AccountStatus != models.AccountStatusTrialActive {
		t.Fatalf("account status = %s, want %s", got.AccountStatus, models.AccountStatusTrialActive)
	}
	if got.TrialDaysRemaining != 3 {
		t.Fatalf("trial days remaining = %d, want 3", got.TrialDaysRemaining)
	}
}

func TestClassifyTrialDaysRemainingRoundsUp(t *testing.T) {
	trial := models.NewTrialRecord(1, classifyNow, 7)
	got := Classify(trial, nil, nil, classifyNow.Add(30*time.Minute))
	if got.TrialDaysRemaining != 7 {
		t.Fatalf("partial day should round up: got %d, want 7", got.TrialDaysRemaining)
	}
}

func TestClassifyTrialExpiryBoundary(t *testing.T) {
	trial := models.NewTrialRecord(1, classifyNow.AddDate(0, 0, -7), 7)

	// One second before the window closes access still holds.
	got := Classify(trial, nil, nil, trial.EndTime.Add(-time.Second))
	if !got.HasAccess {
		t.Fatalf("one second before end the trial must still grant access")
	}

	// At exactly end_time access is gone.
	got = Classify(trial, nil, nil, trial.EndTime)
	if got.HasAccess {
		t.Fatalf("at end_time the trial must no longer grant access")
	}
	if got.AccountStatus != models.AccountStatusTrialExpired {
		t.Fatalf("account status = %s, want %s", got.AccountStatus, models.AccountStatusTrialExpired)
	}
}

func TestClassifyNoRelationships(t *testing.T) {
	got := Classify(nil, nil, nil, classifyNow)
	if got.HasAccess {
		t.Fatalf("no trial and no billing must mean no access, got %+v", got)
	}
	if got.AccessLevel != models.AccessLevelNone {
		t.Fatalf("access level = %s, want %s", got.AccessLevel, models.AccessLevelNone)
	}
}

func TestClassifyConvertedTrialWithoutLinkageIsSuspended(t *testing.T) {
	trial := models.NewTrialRecord(1, classifyNow.AddDate(0, 0, -30), 7)
	trial.Status = models.TrialStatusConvertedToPaid

	got := Classify(trial, nil, nil, classifyNow)
	if got.HasAccess {
		t.Fatalf("converted trial without live billing must not grant access")
	}
	if got.AccessLevel != models.AccessLevelSuspended {
		t.Fatalf("access level = %s, want %s", got.AccessLevel, models.AccessLevelSuspended)
	}
}
