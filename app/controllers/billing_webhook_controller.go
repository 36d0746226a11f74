package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/DeskFox/app/repository"
	"github.com/ManuelReschke/DeskFox/internal/pkg/billing"
	"github.com/ManuelReschke/DeskFox/internal/pkg/env"
	"github.com/ManuelReschke/DeskFox/internal/pkg/lifecycle"
)

const webhookSignatureHeader = "X-Billing-Signature"

// HandleBillingWebhook receives provider subscription webhooks, records them
// idempotently, mirrors the subscription state into the billing linkage and
// reconciles the affected user before acknowledging.
func HandleBillingWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	secret := env.GetEnv("BILLING_WEBHOOK_SECRET", "")
	signatureValid := billing.VerifyWebhookSignature(payload, c.Get(webhookSignatureHeader), secret)
	if !signatureValid {
		log.Warnf("[BillingWebhook] Invalid signature from %s", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	svc := billing.NewService(repos.Billing, lifecycle.GetManager().GetReconciler())

	event, err := billing.ParseSubscriptionEvent(payload)
	if err != nil {
		log.Warnf("[BillingWebhook] Unparseable event: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_payload", "message": err.Error()})
	}

	created, stored, err := svc.RecordWebhookEvent(c.UserContext(), billing.WebhookEventInput{
		Provider:        "stripe",
		ProviderEventID: event.EventID,
		EventType:       event.EventType,
		PayloadJSON:     string(payload),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": "event persistence failed"})
	}
	if !created && stored.ProcessedAt != nil {
		// Replay of an already-processed delivery.
		return c.JSON(fiber.Map{"status": "duplicate"})
	}

	userID := event.LocalUserID
	if userID == 0 {
		linkage, err := repos.Billing.GetLinkageByCustomerID("stripe", event.CustomerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Billing row referencing no known user: log and skip, per the
				// data-inconsistency policy.
				log.Warnf("[BillingWebhook] Event %s references unknown customer %s", event.EventID, event.CustomerID)
				markErr := fmt.Errorf("unknown customer %s", event.CustomerID)
				_ = svc.MarkWebhookProcessed(c.UserContext(), stored.ID, markErr)
				return c.JSON(fiber.Map{"status": "skipped_unknown_customer"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal", "message": "customer lookup failed"})
		}
		userID = linkage.UserID
	}

	_, state, syncErr := svc.SyncSubscription(c.UserContext(), billing.NormalizedSubscription{
		UserID:                 userID,
		Provider:               "stripe",
		ExternalCustomerID:     event.CustomerID,
		ExternalSubscriptionID: event.SubscriptionID,
		ProviderPlanRef:        event.PlanRef,
		Status:                 event.Status,
		CurrentPeriodStart:     event.CurrentPeriodStart,
		CurrentPeriodEnd:       event.CurrentPeriodEnd,
		CancelAtPeriodEnd:      event.CancelAtPeriodEnd,
		RawPayloadJSON:         string(payload),
	})
	if err := svc.MarkWebhookProcessed(c.UserContext(), stored.ID, syncErr); err != nil {
		log.Errorf("[BillingWebhook] Could not mark event %d processed: %v", stored.ID, err)
	}
	if syncErr != nil {
		log.Errorf("[BillingWebhook] Sync for user %d failed: %v", userID, syncErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sync_failed"})
	}

	return c.JSON(fiber.Map{"status": "processed", "access_state": state})
}
