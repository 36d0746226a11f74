package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/DeskFox/app/models"
	"github.com/ManuelReschke/DeskFox/app/repository"
)

// Reconciler is the slice of the lifecycle engine the billing service drives.
// Every observed status change reconciles the affected user synchronously,
// so derived state is never older than the snapshot that triggered the call.
type Reconciler interface {
	OnBillingStatusChanged(ctx context.Context, userID uint) (*models.AccountState, error)
}

// Service provides provider-neutral billing synchronization. It owns writes
// to the billing linkage; the lifecycle engine only ever reads it.
type Service struct {
	repo       repository.BillingRepository
	reconciler Reconciler
}

// NewService creates a billing service from an injected repository and
// reconciler.
func NewService(repo repository.BillingRepository, reconciler Reconciler) *Service {
	return &Service{repo: repo, reconciler: reconciler}
}

// ResolveMappedPlan resolves a provider plan reference to an internal plan.
// Unmapped references default to pro.
func (s *Service) ResolveMappedPlan(ctx context.Context, provider, providerPlanRef string) (string, error) {
	_ = ctx
	p := strings.ToLower(strings.TrimSpace(provider))
	ref := strings.TrimSpace(providerPlanRef)
	if p == "" || ref == "" {
		return models.AccessLevelPro, nil
	}

	m, err := s.repo.FindActivePlanMapping(p, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AccessLevelPro, nil
		}
		return "", err
	}
	return normalizePlan(m.InternalPlan), nil
}

// SyncSubscription upserts the mirrored subscription state and reconciles the
// user before returning, per the convergence rule for external events.
func (s *Service) SyncSubscription(ctx context.Context, in NormalizedSubscription) (*models.BillingLinkage, *models.AccountState, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	customerID := strings.TrimSpace(in.ExternalCustomerID)
	if in.UserID == 0 || provider == "" || customerID == "" {
		return nil, nil, errors.New("user_id, provider and external_customer_id are required")
	}

	internalPlan, err := s.ResolveMappedPlan(ctx, provider, in.ProviderPlanRef)
	if err != nil {
		return nil, nil, err
	}

	linkage := &models.BillingLinkage{
		UserID:                 in.UserID,
		Provider:               provider,
		ExternalCustomerID:     customerID,
		ExternalSubscriptionID: strings.TrimSpace(in.ExternalSubscriptionID),
		Status:                 normalizeStatus(in.Status),
		InternalPlan:           internalPlan,
		CurrentPeriodStart:     in.CurrentPeriodStart,
		CurrentPeriodEnd:       in.CurrentPeriodEnd,
		CancelAtPeriodEnd:      in.CancelAtPeriodEnd,
		RawPayloadJSON:         in.RawPayloadJSON,
	}
	if err := s.repo.UpsertLinkage(linkage); err != nil {
		return nil, nil, err
	}

	state, err := s.reconciler.OnBillingStatusChanged(ctx, in.UserID)
	if err != nil {
		return linkage, nil, err
	}
	return linkage, state, nil
}

// RecordWebhookEvent persists webhook payloads idempotently. The first return
// value reports whether the event is new; replays return the stored event.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
