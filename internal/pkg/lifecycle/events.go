package lifecycle

import (
	"context"

	"github.com/ManuelReschke/DeskFox/app/models"
)

// OnAccountCreated reacts to a fresh signup: it creates the trial record
// (start now, end now + trial window) and reconciles immediately so the
// derived state exists before the first read.
func (r *Reconciler) OnAccountCreated(ctx context.Context, userID uint) (*models.AccountState, error) {
	err := r.repo.WithUserLock(userID, func(repo Repository) error {
		trial, err := repo.GetTrial(userID)
		if err != nil {
			return err
		}
		if trial != nil {
			// Signup replay; the existing trial stands.
			return nil
		}
		return repo.CreateTrial(models.NewTrialRecord(userID, r.clock.Now(), r.cfg.TrialDays))
	})
	if err != nil {
		return nil, err
	}
	return r.Reconcile(ctx, userID)
}

// OnBillingStatusChanged reacts to an observed billing transition. It
// reconciles the user synchronously so no caller ever reads a derived state
// computed from a billing snapshot older than the one that triggered the
// call.
func (r *Reconciler) OnBillingStatusChanged(ctx context.Context, userID uint) (*models.AccountState, error) {
	return r.Reconcile(ctx, userID)
}
