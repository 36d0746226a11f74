package billing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DeskFox/app/models"
)

type fakeBillingRepo struct {
	linkages map[string]*models.BillingLinkage
	mappings map[string]string
	events   map[string]*models.BillingWebhookEvent
	nextID   uint
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		linkages: make(map[string]*models.BillingLinkage),
		mappings: make(map[string]string),
		events:   make(map[string]*models.BillingWebhookEvent),
	}
}

func (f *fakeBillingRepo) GetLinkageByUserID(userID uint) (*models.BillingLinkage, error) {
	for _, l := range f.linkages {
		if l.UserID == userID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeBillingRepo) GetLinkageByCustomerID(provider, externalCustomerID string) (*models.BillingLinkage, error) {
	l, ok := f.linkages[provider+"/"+externalCustomerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeBillingRepo) UpsertLinkage(linkage *models.BillingLinkage) error {
	key := linkage.Provider + "/" + linkage.ExternalCustomerID
	if existing, ok := f.linkages[key]; ok {
		linkage.ID = existing.ID
	} else {
		f.nextID++
		linkage.ID = f.nextID
	}
	cp := *linkage
	f.linkages[key] = &cp
	return nil
}

func (f *fakeBillingRepo) FindActivePlanMapping(provider, providerPlanRef string) (*models.BillingPlanMapping, error) {
	plan, ok := f.mappings[provider+"/"+providerPlanRef]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.BillingPlanMapping{Provider: provider, ProviderPlanRef: providerPlanRef, InternalPlan: plan, IsActive: true}, nil
}

func (f *fakeBillingRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	f.nextID++
	event.ID = f.nextID
	cp := *event
	f.events[key] = &cp
	return true, &cp, nil
}

func (f *fakeBillingRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, e := range f.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) CountLinkagesByStatus(statuses ...string) (int64, error) {
	var n int64
	for _, l := range f.linkages {
		for _, s := range statuses {
			if l.Status == s {
				n++
			}
		}
	}
	return n, nil
}

type fakeLifecycleReconciler struct {
	reconciled []uint
}

func (f *fakeLifecycleReconciler) OnBillingStatusChanged(_ context.Context, userID uint) (*models.AccountState, error) {
	f.reconciled = append(f.reconciled, userID)
	return &models.AccountState{UserID: userID, HasAccess: true}, nil
}

func TestSyncSubscriptionUpsertsAndReconciles(t *testing.T) {
	repo := newFakeBillingRepo()
	rec := &fakeLifecycleReconciler{}
	svc := NewService(repo, rec)

	linkage, state, err := svc.SyncSubscription(context.Background(), NormalizedSubscription{
		UserID:             42,
		Provider:           "Stripe",
		ExternalCustomerID: "cus_1",
		Status:             "ACTIVE",
	})
	require.NoError(t, err)

	assert.Equal(t, "stripe", linkage.Provider)
	assert.Equal(t, models.BillingStatusActive, linkage.Status)
	assert.Equal(t, models.AccessLevelPro, linkage.InternalPlan)
	require.NotNil(t, state)
	assert.Equal(t, []uint{42}, rec.reconciled)
}

func TestSyncSubscriptionUsesPlanMapping(t *testing.T) {
	repo := newFakeBillingRepo()
	repo.mappings["stripe/price_enterprise"] = "enterprise"
	svc := NewService(repo, &fakeLifecycleReconciler{})

	linkage, _, err := svc.SyncSubscription(context.Background(), NormalizedSubscription{
		UserID:             1,
		Provider:           "stripe",
		ExternalCustomerID: "cus_1",
		ProviderPlanRef:    "price_enterprise",
		Status:             "active",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AccessLevelEnterprise, linkage.InternalPlan)
}

func TestSyncSubscriptionRejectsIncompleteInput(t *testing.T) {
	svc := NewService(newFakeBillingRepo(), &fakeLifecycleReconciler{})

	_, _, err := svc.SyncSubscription(context.Background(), NormalizedSubscription{Provider: "stripe"})
	assert.Error(t, err)
}

func TestRecordWebhookEventIsIdempotent(t *testing.T) {
	svc := NewService(newFakeBillingRepo(), &fakeLifecycleReconciler{})

	created, first, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventType:       "customer.subscription.updated",
		PayloadJSON:     "{}",
		SignatureValid:  true,
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, replay, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: "evt_1",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replay.ID)
}

func TestRecordWebhookEventHashesMissingEventID(t *testing.T) {
	svc := NewService(newFakeBillingRepo(), &fakeLifecycleReconciler{})

	created, stored, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:    "stripe",
		PayloadJSON: `{"some":"payload"}`,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, strings.HasPrefix(stored.ProviderEventID, "hash:"))

	// The identical payload replays to the same synthetic id.
	created, _, err = svc.RecordWebhookEvent(context.Background(), WebhookEventInput{
		Provider:    "stripe",
		PayloadJSON: `{"some":"payload"}`,
	})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestResolveMappedPlanFallsBackToPro(t *testing.T) {
	svc := NewService(newFakeBillingRepo(), &fakeLifecycleReconciler{})

	plan, err := svc.ResolveMappedPlan(context.Background(), "stripe", "price_unmapped")
	require.NoError(t, err)
	assert.Equal(t, models.AccessLevelPro, plan)

	plan, err = svc.ResolveMappedPlan(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, models.AccessLevelPro, plan)
}
