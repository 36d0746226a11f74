package lifecycle

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/DeskFox/app/models"
	"github.com/ManuelReschke/DeskFox/internal/pkg/clock"
	"github.com/ManuelReschke/DeskFox/internal/pkg/env"
)

const (
	DefaultTrialDays        = 7
	DefaultDeletionGrace    = 24 * time.Hour
	defaultTrialDaysKey     = "TRIAL_DAYS"
	defaultDeletionGraceKey = "TRIAL_DELETION_GRACE_HOURS"
)

// Config carries the tunable lifecycle parameters.
type Config struct {
	// TrialDays is the length of the signup trial window.
	TrialDays int
	// DeletionGrace is the delay between trial expiration and eligibility for
	// deletion scheduling, during which a late payment can still rescue the
	// account.
	DeletionGrace time.Duration
}

// ConfigFromEnv reads the lifecycle parameters from the environment.
func ConfigFromEnv() Config {
	cfg := Config{TrialDays: DefaultTrialDays, DeletionGrace: DefaultDeletionGrace}
	if v, err := strconv.Atoi(env.GetEnv(defaultTrialDaysKey, "")); err == nil && v > 0 {
		cfg.TrialDays = v
	}
	if v, err := strconv.Atoi(env.GetEnv(defaultDeletionGraceKey, "")); err == nil && v > 0 {
		cfg.DeletionGrace = time.Duration(v) * time.Hour
	}
	return cfg
}

// Notifier receives best-effort lifecycle notifications. Failures are logged
// and never affect reconciliation.
type Notifier interface {
	TrialExpired(user *models.User, deletionScheduledAt time.Time)
	DeletionScheduled(user *models.User)
}

// Reconciler computes the authoritative access decision per user and advances
// the trial state machine. Safe to invoke concurrently and repeatedly; with
// stable inputs it converges within a single call and further calls are
// no-ops.
type Reconciler struct {
	repo     Repository
	clock    clock.Clock
	cfg      Config
	notifier Notifier
}

// NewReconciler creates a reconciler over the given repository and clock.
func NewReconciler(repo Repository, clk clock.Clock, cfg Config) *Reconciler {
	if cfg.TrialDays <= 0 {
		cfg.TrialDays = DefaultTrialDays
	}
	if cfg.DeletionGrace <= 0 {
		cfg.DeletionGrace = DefaultDeletionGrace
	}
	return &Reconciler{repo: repo, clock: clk, cfg: cfg}
}

// SetNotifier attaches an optional notifier for trial transitions.
func (r *Reconciler) SetNotifier(n Notifier) {
	r.notifier = n
}

// Config returns the active lifecycle parameters.
func (r *Reconciler) Config() Config {
	return r.cfg
}

// Reconcile recomputes the derived account state for one user under the
// per-user lock. Protection short-circuits the trial state machine; otherwise
// the trial advances along active -> expired -> scheduled_for_deletion as time
// passes, and the classifier result is written back with last_synced_at = now.
func (r *Reconciler) Reconcile(ctx context.Context, userID uint) (*models.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		state         *models.AccountState
		expiredUser   *models.User
		expiredAt     time.Time
		scheduledUser *models.User
	)

	err := r.repo.WithUserLock(userID, func(repo Repository) error {
		user, err := repo.GetUser(userID)
		if err != nil {
			return err
		}
		trial, err := repo.GetTrial(userID)
		if err != nil {
			return err
		}
		billing, err := repo.GetBillingLinkage(userID)
		if err != nil {
			return err
		}
		workspace, err := repo.GetWorkspaceAccount(userID)
		if err != nil {
			return err
		}

		now := r.clock.Now()
		protected := IsProtected(user, billing)

		if trial != nil {
			if protected {
				// Protection always short-circuits the state machine.
				if trial.Status != models.TrialStatusConvertedToPaid || trial.DeletionScheduledAt != nil {
					trial.MarkConverted()
					if err := repo.SaveTrial(trial); err != nil {
						return err
					}
				}
			} else {
				if trial.Status == models.TrialStatusActive && trial.IsExpiredAt(now) {
					if err := trial.MarkExpired(now, r.cfg.DeletionGrace); err != nil {
						return err
					}
					if err := repo.SaveTrial(trial); err != nil {
						return err
					}
					expiredUser, expiredAt = user, *trial.DeletionScheduledAt
				}
				if trial.Status == models.TrialStatusExpired &&
					trial.DeletionScheduledAt != nil && !now.Before(*trial.DeletionScheduledAt) {
					// Marking only; nothing is deleted here. Billing is re-read
					// so a webhook landing between our read and this write still
					// protects the account.
					liveBilling, err := repo.GetBillingLinkage(userID)
					if err != nil {
						return err
					}
					if IsProtected(user, liveBilling) {
						log.Errorf("[Lifecycle] Refusing to schedule deletion for protected user %d", userID)
						trial.MarkConverted()
						billing = liveBilling
						protected = true
					} else {
						if err := trial.MarkScheduledForDeletion(); err != nil {
							return err
						}
						scheduledUser = user
					}
					if err := repo.SaveTrial(trial); err != nil {
						return err
					}
				}
			}
		}

		decision := Classify(trial, billing, workspace, now)
		if protected && !decision.HasAccess {
			// Identity-grounded protection: neither billing nor the trial
			// window grants anything here, but the account must never lose
			// access.
			decision.HasAccess = true
			decision.AccessLevel = models.AccessLevelPro
			decision.AccountStatus = models.AccountStatusSubscriptionActive
			decision.TrialDaysRemaining = 0
		}
		state = &models.AccountState{
			UserID:             userID,
			AccountStatus:      decision.AccountStatus,
			AccessLevel:        decision.AccessLevel,
			HasAccess:          decision.HasAccess,
			TrialDaysRemaining: decision.TrialDaysRemaining,
			LastSyncedAt:       now,
		}
		return repo.SaveAccountState(state)
	})
	if err != nil {
		return nil, err
	}

	// Notifications fire only after the transaction committed.
	if r.notifier != nil {
		if expiredUser != nil {
			r.notifier.TrialExpired(expiredUser, expiredAt)
		}
		if scheduledUser != nil {
			r.notifier.DeletionScheduled(scheduledUser)
		}
	}
	return state, nil
}

// BatchResult collects per-user outcomes of a batch reconciliation pass.
type BatchResult struct {
	Reconciled int
	Failed     map[uint]error
}

// ReconcileAll applies Reconcile to every known user. Each user is
// independent: a failure is recorded and the batch continues. Context
// cancellation stops the pass between users; committed writes stand.
func (r *Reconciler) ReconcileAll(ctx context.Context) (BatchResult, error) {
	result := BatchResult{Failed: make(map[uint]error)}

	ids, err := r.repo.ListUserIDs()
	if err != nil {
		return result, err
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		if _, err := r.Reconcile(ctx, id); err != nil {
			log.Warnf("[Lifecycle] Reconcile of user %d failed, skipping this pass: %v", id, err)
			result.Failed[id] = err
			continue
		}
		result.Reconciled++
	}
	return result, nil
}

// ForceProtect converts a user's trial to converted_to_paid and clears any
// deletion schedule. Administrative rescue path.
func (r *Reconciler) ForceProtect(ctx context.Context, userID uint) (*models.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := r.repo.WithUserLock(userID, func(repo Repository) error {
		if _, err := repo.GetUser(userID); err != nil {
			return err
		}
		trial, err := repo.GetTrial(userID)
		if err != nil {
			return err
		}
		if trial == nil {
			trial = models.NewTrialRecord(userID, r.clock.Now(), r.cfg.TrialDays)
			trial.MarkConverted()
			return repo.CreateTrial(trial)
		}
		trial.MarkConverted()
		return repo.SaveTrial(trial)
	})
	if err != nil {
		return nil, err
	}
	return r.Reconcile(ctx, userID)
}
