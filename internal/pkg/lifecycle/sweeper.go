package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/ManuelReschke/DeskFox/app/models"
	"github.com/ManuelReschke/DeskFox/internal/pkg/clock"
)

// WorkspaceDeleter is the slice of the external workspace collaborator the
// sweeper consumes. DeleteAccount is idempotent: deleting a nonexistent
// account is success, not error.
type WorkspaceDeleter interface {
	DeleteAccount(ctx context.Context, externalAccountID string) error
}

// Sweeper selects accounts eligible for final, irreversible cleanup and
// drives the external teardown. Selection mirrors the safety invariant: only
// scheduled_for_deletion trials whose billing shows no active/trialing
// subscription, whose trial ended more than the grace period ago and whose
// identity is not protected.
type Sweeper struct {
	repo      Repository
	clock     clock.Clock
	cfg       Config
	workspace WorkspaceDeleter
	workers   int
}

// NewSweeper creates a deletion sweeper with a bounded worker pool.
func NewSweeper(repo Repository, clk clock.Clock, cfg Config, workspace WorkspaceDeleter, workers int) *Sweeper {
	if workers <= 0 {
		workers = 3 // Default number of workers
	}
	if cfg.DeletionGrace <= 0 {
		cfg.DeletionGrace = DefaultDeletionGrace
	}
	return &Sweeper{repo: repo, clock: clk, cfg: cfg, workspace: workspace, workers: workers}
}

// SelectForDeletion returns the deletion candidates. Read-only: it never
// mutates anything. Billing and protection are re-checked live per candidate
// so a stale scheduled_for_deletion cache row can never select a paying
// customer.
func (s *Sweeper) SelectForDeletion(ctx context.Context) ([]uint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cutoff := s.clock.Now().Add(-s.cfg.DeletionGrace)
	ids, err := s.repo.ListDeletionScheduled(cutoff)
	if err != nil {
		return nil, err
	}

	candidates := make([]uint, 0, len(ids))
	for _, id := range ids {
		user, err := s.repo.GetUser(id)
		if err != nil {
			log.Warnf("[Sweeper] Skipping candidate %d: %v", id, err)
			continue
		}
		billing, err := s.repo.GetBillingLinkage(id)
		if err != nil {
			log.Warnf("[Sweeper] Skipping candidate %d: billing lookup failed: %v", id, err)
			continue
		}
		if protected, reason := VerifyProtection(user, billing); protected {
			log.Errorf("[Sweeper] Candidate %d is protected (%s), refusing selection", id, reason)
			continue
		}
		candidates = append(candidates, id)
	}
	return candidates, nil
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	RunID      string
	Candidates int
	Deleted    int
	Failed     map[uint]error
}

// Sweep selects candidates and tears each one down through the bounded
// worker pool. Candidates are independent once selected; each candidate's
// external deletion and local cleanup is a scoped unit that either completes
// or is released untouched for the next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{RunID: uuid.New().String(), Failed: make(map[uint]error)}

	candidates, err := s.SelectForDeletion(ctx)
	if err != nil {
		return result, err
	}
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		return result, nil
	}
	log.Infof("[Sweeper] Run %s: %d candidates", result.RunID, len(candidates))

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		pool = make(chan struct{}, s.workers)
	)
	for _, id := range candidates {
		select {
		case <-ctx.Done():
			wg.Wait()
			return result, ctx.Err()
		case pool <- struct{}{}:
		}

		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			defer func() { <-pool }()

			err := s.deleteOne(ctx, userID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Errorf("[Sweeper] Run %s: teardown of user %d failed, will retry next sweep: %v", result.RunID, userID, err)
				result.Failed[userID] = err
				return
			}
			result.Deleted++
		}(id)
	}
	wg.Wait()

	log.Infof("[Sweeper] Run %s: deleted %d/%d", result.RunID, result.Deleted, result.Candidates)
	return result, nil
}

// deleteOne tears down a single account: external workspace deletion first,
// then local identity and trial cleanup, all re-verified under the user lock.
// Local state is never mutated ahead of confirmed external removal.
func (s *Sweeper) deleteOne(ctx context.Context, userID uint) error {
	var workspaceAccount *models.WorkspaceAccount

	// Verify eligibility under the lock before touching anything external.
	err := s.repo.WithUserLock(userID, func(repo Repository) error {
		var err error
		workspaceAccount, err = s.verifyEligible(repo, userID)
		return err
	})
	if err != nil {
		return err
	}

	if workspaceAccount != nil && workspaceAccount.Status != models.WorkspaceStatusDeleted {
		if err := s.workspace.DeleteAccount(ctx, workspaceAccount.ExternalAccountID); err != nil {
			return fmt.Errorf("external workspace deletion failed: %w", err)
		}
	}

	// External removal is confirmed; commit the local cleanup, re-verifying
	// protection one last time in case billing changed mid-flight.
	return s.repo.WithUserLock(userID, func(repo Repository) error {
		if _, err := s.verifyEligible(repo, userID); err != nil {
			return err
		}
		if workspaceAccount != nil {
			if err := repo.MarkWorkspaceDeleted(userID); err != nil {
				return err
			}
		}
		if err := repo.DeleteUser(userID); err != nil {
			return err
		}
		if err := repo.DeleteAccountState(userID); err != nil {
			return err
		}
		return repo.DeleteTrial(userID)
	})
}

// verifyEligible re-checks the full selection predicate for one candidate.
func (s *Sweeper) verifyEligible(repo Repository, userID uint) (*models.WorkspaceAccount, error) {
	user, err := repo.GetUser(userID)
	if err != nil {
		return nil, err
	}
	billing, err := repo.GetBillingLinkage(userID)
	if err != nil {
		return nil, err
	}
	if protected, reason := VerifyProtection(user, billing); protected {
		log.Errorf("[Sweeper] Refusing teardown of protected user %d (%s)", userID, reason)
		return nil, ErrProtectedAccount
	}
	trial, err := repo.GetTrial(userID)
	if err != nil {
		return nil, err
	}
	if trial == nil || trial.Status != models.TrialStatusScheduledForDeletion {
		return nil, fmt.Errorf("user %d is no longer scheduled for deletion", userID)
	}
	if trial.EndTime.After(s.clock.Now().Add(-s.cfg.DeletionGrace)) {
		return nil, fmt.Errorf("user %d is still inside the deletion grace period", userID)
	}
	return repo.GetWorkspaceAccount(userID)
}
