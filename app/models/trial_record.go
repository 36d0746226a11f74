package models

import (
	"errors"
	"time"
)

// ErrIllegalTransition marks an attempted trial transition outside the
// forward-only state machine.
var ErrIllegalTransition = errors.New("illegal trial status transition")

// Trial lifecycle states. Transitions only ever move forward
// (active -> expired -> scheduled_for_deletion) or jump to converted_to_paid;
// converted_to_paid is terminal except for a fresh signup.
const (
	TrialStatusActive               = "active"
	TrialStatusExpired              = "expired"
	TrialStatusConvertedToPaid      = "converted_to_paid"
	TrialStatusScheduledForDeletion = "scheduled_for_deletion"
)

// TrialRecord tracks the time-boxed access grant every account starts with.
// Exactly one per user; mutated only by the reconciler and the sweeper.
type TrialRecord struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UserID              uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	StartTime           time.Time  `gorm:"not null" json:"start_time"`
	EndTime             time.Time  `gorm:"not null;index" json:"end_time"`
	Status              string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	DeletionScheduledAt *time.Time `gorm:"type:timestamp;default:null" json:"deletion_scheduled_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewTrialRecord creates a fresh trial starting at start and running for days.
func NewTrialRecord(userID uint, start time.Time, days int) *TrialRecord {
	return &TrialRecord{
		UserID:    userID,
		StartTime: start,
		EndTime:   start.AddDate(0, 0, days),
		Status:    TrialStatusActive,
	}
}

// IsExpiredAt reports whether the trial window has ended at the given time.
func (t *TrialRecord) IsExpiredAt(now time.Time) bool {
	return !t.EndTime.After(now)
}

// CanTransitionTo enforces the forward-only trial state machine.
func (t *TrialRecord) CanTransitionTo(next string) bool {
	if next == TrialStatusConvertedToPaid {
		return true
	}
	switch t.Status {
	case TrialStatusActive:
		return next == TrialStatusExpired
	case TrialStatusExpired:
		return next == TrialStatusScheduledForDeletion
	case TrialStatusConvertedToPaid:
		// Terminal; re-entry to active only happens via a fresh signup.
		return false
	default:
		return false
	}
}

// MarkConverted moves the trial to converted_to_paid and clears any pending
// deletion schedule.
func (t *TrialRecord) MarkConverted() {
	t.Status = TrialStatusConvertedToPaid
	t.DeletionScheduledAt = nil
}

// MarkExpired moves an active trial to expired and stamps the deletion
// schedule at now plus the grace period.
func (t *TrialRecord) MarkExpired(now time.Time, grace time.Duration) error {
	if !t.CanTransitionTo(TrialStatusExpired) {
		return ErrIllegalTransition
	}
	t.Status = TrialStatusExpired
	scheduled := now.Add(grace)
	t.DeletionScheduledAt = &scheduled
	return nil
}

// MarkScheduledForDeletion moves an expired trial to scheduled_for_deletion.
func (t *TrialRecord) MarkScheduledForDeletion() error {
	if !t.CanTransitionTo(TrialStatusScheduledForDeletion) {
		return ErrIllegalTransition
	}
	t.Status = TrialStatusScheduledForDeletion
	return nil
}
