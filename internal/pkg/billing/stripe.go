package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SubscriptionEvent is the parsed form of a provider subscription webhook.
type SubscriptionEvent struct {
	EventID            string
	EventType          string
	CustomerID         string
	SubscriptionID     string
	PlanRef            string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	LocalUserID        uint
}

type stripeEventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeSubscriptionObject `json:"object"`
	} `json:"data"`
}

type stripeSubscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// ParseSubscriptionEvent parses a customer.subscription.* webhook payload.
// The local user id travels in the subscription metadata, set when the
// checkout session was created.
func ParseSubscriptionEvent(raw []byte) (*SubscriptionEvent, error) {
	var envelope stripeEventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if !strings.HasPrefix(envelope.Type, "customer.subscription.") {
		return nil, fmt.Errorf("unsupported event type %q", envelope.Type)
	}

	obj := envelope.Data.Object
	if obj.Customer == "" {
		return nil, errors.New("webhook payload has no customer")
	}

	ev := &SubscriptionEvent{
		EventID:           envelope.ID,
		EventType:         envelope.Type,
		CustomerID:        obj.Customer,
		SubscriptionID:    obj.ID,
		Status:            normalizeStatus(obj.Status),
		CancelAtPeriodEnd: obj.CancelAtPeriodEnd,
	}
	if envelope.Type == "customer.subscription.deleted" {
		ev.Status = "canceled"
	}
	if len(obj.Items.Data) > 0 {
		ev.PlanRef = obj.Items.Data[0].Price.ID
	}
	if obj.CurrentPeriodStart > 0 {
		t := time.Unix(obj.CurrentPeriodStart, 0).UTC()
		ev.CurrentPeriodStart = &t
	}
	if obj.CurrentPeriodEnd > 0 {
		t := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
		ev.CurrentPeriodEnd = &t
	}
	if id, ok := obj.Metadata["user_id"]; ok {
		var uid uint
		if _, err := fmt.Sscanf(id, "%d", &uid); err == nil {
			ev.LocalUserID = uid
		}
	}
	return ev, nil
}
