package lifecycle

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/DeskFox/app/models"
)

var errAssert = errors.New("storage failure")

// fakeRepository is an in-memory Repository for exercising the reconciler and
// sweeper without a database. Per-user locking is a keyed mutex.
type fakeRepository struct {
	mu     sync.Mutex
	locks  map[uint]*sync.Mutex
	users  map[uint]*models.User
	trials map[uint]*models.TrialRecord
	bills  map[uint]*models.BillingLinkage
	wspace map[uint]*models.WorkspaceAccount
	states map[uint]*models.AccountState

	failSaveTrial bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		locks:  make(map[uint]*sync.Mutex),
		users:  make(map[uint]*models.User),
		trials: make(map[uint]*models.TrialRecord),
		bills:  make(map[uint]*models.BillingLinkage),
		wspace: make(map[uint]*models.WorkspaceAccount),
		states: make(map[uint]*models.AccountState),
	}
}

func (f *fakeRepository) addUser(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return u
}

func (f *fakeRepository) GetUser(userID uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepository) DeleteUser(userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userID)
	return nil
}

func (f *fakeRepository) ListUserIDs() ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeRepository) GetTrial(userID uint) (*models.TrialRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trials[userID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepository) CreateTrial(trial *models.TrialRecord) error {
	return f.SaveTrial(trial)
}

func (f *fakeRepository) SaveTrial(trial *models.TrialRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaveTrial {
		return errAssert
	}
	cp := *trial
	f.trials[trial.UserID] = &cp
	return nil
}

func (f *fakeRepository) DeleteTrial(userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.trials, userID)
	return nil
}

func (f *fakeRepository) CountTrialsByStatus(status string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.trials {
		if t.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepository) ListDeletionScheduled(endedBefore time.Time) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint
	for id, t := range f.trials {
		if t.Status == models.TrialStatusScheduledForDeletion && t.EndTime.Before(endedBefore) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeRepository) setBilling(userID uint, b *models.BillingLinkage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b == nil {
		delete(f.bills, userID)
		return
	}
	b.UserID = userID
	f.bills[userID] = b
}

func (f *fakeRepository) GetBillingLinkage(userID uint) (*models.BillingLinkage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bills[userID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepository) setWorkspace(userID uint, w *models.WorkspaceAccount) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.UserID = userID
	f.wspace[userID] = w
}

func (f *fakeRepository) GetWorkspaceAccount(userID uint) (*models.WorkspaceAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wspace[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (f *fakeRepository) MarkWorkspaceDeleted(userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.wspace[userID]; ok {
		w.Status = models.WorkspaceStatusDeleted
	}
	return nil
}

func (f *fakeRepository) GetAccountState(userID uint) (*models.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepository) SaveAccountState(state *models.AccountState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *state
	f.states[state.UserID] = &cp
	return nil
}

func (f *fakeRepository) DeleteAccountState(userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, userID)
	return nil
}

func (f *fakeRepository) WithUserLock(userID uint, fn func(Repository) error) error {
	f.mu.Lock()
	l, ok := f.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		f.locks[userID] = l
	}
	f.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(f)
}
