package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/DeskFox/app/models"
	"github.com/ManuelReschke/DeskFox/internal/pkg/clock"
)

// fakeDeleter records external deletions and can be told to fail.
type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (d *fakeDeleter) DeleteAccount(_ context.Context, externalAccountID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.deleted = append(d.deleted, externalAccountID)
	return nil
}

func newTestSweeper(t *testing.T) (*Sweeper, *fakeRepository, *clock.Fake, *fakeDeleter) {
	t.Helper()
	repo := newFakeRepository()
	clk := clock.NewFake(testStart)
	deleter := &fakeDeleter{}
	sw := NewSweeper(repo, clk, Config{TrialDays: 7, DeletionGrace: 24 * time.Hour}, deleter, 2)
	return sw, repo, clk, deleter
}

// seedScheduled plants a user whose trial is scheduled for deletion with the
// grace period fully elapsed.
func seedScheduled(repo *fakeRepository, clk *clock.Fake, id uint) {
	repo.addUser(&models.User{ID: id, Name: "Doomed", Email: "doomed@example.com", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE})
	trial := models.NewTrialRecord(id, clk.Now().AddDate(0, 0, -10), 7)
	trial.Status = models.TrialStatusScheduledForDeletion
	scheduled := trial.EndTime.Add(24 * time.Hour)
	trial.DeletionScheduledAt = &scheduled
	_ = repo.SaveTrial(trial)
}

func TestSweepDeletesEligibleAccount(t *testing.T) {
	sw, repo, clk, deleter := newTestSweeper(t)
	seedScheduled(repo, clk, 1)
	repo.setWorkspace(1, &models.WorkspaceAccount{ExternalAccountID: "ws-abc", ExternalEmail: "doomed@example.com", Status: models.WorkspaceStatusActive})
	_ = repo.SaveAccountState(&models.AccountState{UserID: 1, AccountStatus: models.AccountStatusTrialExpired})

	result, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Deleted)
	assert.Empty(t, result.Failed)
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, []string{"ws-abc"}, deleter.deleted)

	_, err = repo.GetUser(1)
	assert.ErrorIs(t, err, ErrUserNotFound)
	trial, err := repo.GetTrial(1)
	require.NoError(t, err)
	assert.Nil(t, trial)
	state, err := repo.GetAccountState(1)
	require.NoError(t, err)
	assert.Nil(t, state)

	ws, err := repo.GetWorkspaceAccount(1)
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, models.WorkspaceStatusDeleted, ws.Status)
}

func TestSweepWithoutWorkspaceAccount(t *testing.T) {
	sw, repo, clk, deleter := newTestSweeper(t)
	seedScheduled(repo, clk, 1)

	result, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Empty(t, deleter.deleted)

	_, err = repo.GetUser(1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSelectForDeletionNeverPicksEntitledBilling(t *testing.T) {
	sw, repo, clk, _ := newTestSweeper(t)
	seedScheduled(repo, clk, 1)
	seedScheduled(repo, clk, 2)

	// User 2 has live billing despite the stale scheduled_for_deletion row.
	repo.setBilling(2, &models.BillingLinkage{Status: models.BillingStatusActive, InternalPlan: "pro"})

	candidates, err := sw.SelectForDeletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, candidates)
}

func TestSelectForDeletionNeverPicksProtectedIdentity(t *testing.T) {
	sw, repo, clk, _ := newTestSweeper(t)
	seedScheduled(repo, clk, 1)
	repo.addUser(&models.User{ID: 1, Name: "Admin", Email: ProtectedAdminEmail, Role: models.ROLE_USER, Status: models.STATUS_ACTIVE})

	candidates, err := sw.SelectForDeletion(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSelectForDeletionRespectsGracePeriod(t *testing.T) {
	sw, repo, clk, _ := newTestSweeper(t)

	// Trial ended 12h ago: scheduled, but grace (24h) has not elapsed.
	repo.addUser(&models.User{ID: 1, Name: "Fresh", Email: "fresh@example.com", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE})
	trial := models.NewTrialRecord(1, clk.Now().AddDate(0, 0, -7).Add(-12*time.Hour), 7)
	trial.Status = models.TrialStatusScheduledForDeletion
	require.NoError(t, repo.SaveTrial(trial))

	candidates, err := sw.SelectForDeletion(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)

	clk.Advance(13 * time.Hour)
	candidates, err = sw.SelectForDeletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, candidates)
}

func TestSweepExternalFailureLeavesStateUntouched(t *testing.T) {
	sw, repo, clk, deleter := newTestSweeper(t)
	seedScheduled(repo, clk, 1)
	repo.setWorkspace(1, &models.WorkspaceAccount{ExternalAccountID: "ws-abc", ExternalEmail: "doomed@example.com", Status: models.WorkspaceStatusActive})
	deleter.err = errors.New("workspace api unavailable")

	result, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 0, result.Deleted)
	require.Contains(t, result.Failed, uint(1))

	// Everything local survives for the next sweep.
	_, err = repo.GetUser(1)
	assert.NoError(t, err)
	trial, err := repo.GetTrial(1)
	require.NoError(t, err)
	require.NotNil(t, trial)
	assert.Equal(t, models.TrialStatusScheduledForDeletion, trial.Status)
	ws, err := repo.GetWorkspaceAccount(1)
	require.NoError(t, err)
	assert.Equal(t, models.WorkspaceStatusActive, ws.Status)

	// Retry succeeds once the collaborator recovers.
	deleter.err = nil
	result, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
}

func TestSweepBillingChangeMidFlightAborts(t *testing.T) {
	sw, repo, clk, _ := newTestSweeper(t)
	seedScheduled(repo, clk, 1)

	// Billing flips to active after selection but before teardown.
	repo.setBilling(1, &models.BillingLinkage{Status: models.BillingStatusActive, InternalPlan: "pro"})

	err := sw.deleteOne(context.Background(), 1)
	assert.ErrorIs(t, err, ErrProtectedAccount)

	_, err = repo.GetUser(1)
	assert.NoError(t, err)
}

func TestSweepContinuesAfterIndividualFailure(t *testing.T) {
	sw, repo, clk, _ := newTestSweeper(t)
	seedScheduled(repo, clk, 1)
	seedScheduled(repo, clk, 2)
	seedScheduled(repo, clk, 3)

	// User 2 becomes protected between selection and teardown; candidates 1
	// and 3 still get deleted.
	repo.setBilling(2, &models.BillingLinkage{Status: models.BillingStatusTrialing, InternalPlan: "pro"})
	candidates := []uint{1, 2, 3}
	var failed, deleted int
	for _, id := range candidates {
		if err := sw.deleteOne(context.Background(), id); err != nil {
			failed++
			continue
		}
		deleted++
	}
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 1, failed)

	_, err := repo.GetUser(2)
	assert.NoError(t, err)
}
