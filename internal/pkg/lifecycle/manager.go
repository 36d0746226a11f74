package lifecycle

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/DeskFox/internal/pkg/clock"
	"github.com/ManuelReschke/DeskFox/internal/pkg/database"
	"github.com/ManuelReschke/DeskFox/internal/pkg/env"
	"github.com/ManuelReschke/DeskFox/internal/pkg/workspace"
)

// Manager runs the periodic reconciliation and deletion sweeps
type Manager struct {
	reconciler      *Reconciler
	sweeper         *Sweeper
	reconcileTicker *time.Ticker
	sweepTicker     *time.Ticker
	stopCh          chan struct{}
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global lifecycle manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		repo := NewRepository(database.GetDB())
		cfg := ConfigFromEnv()
		clk := clock.System{}

		workers := 3
		if v, err := strconv.Atoi(env.GetEnv("SWEEP_WORKER_COUNT", "")); err == nil && v > 0 {
			workers = v
		}

		globalManager = &Manager{
			reconciler: NewReconciler(repo, clk, cfg),
			sweeper:    NewSweeper(repo, clk, cfg, workspace.NewClientFromEnv(), workers),
			stopCh:     make(chan struct{}),
		}
	})
	return globalManager
}

// GetReconciler returns the managed reconciler
func (m *Manager) GetReconciler() *Reconciler {
	return m.reconciler
}

// GetSweeper returns the managed sweeper
func (m *Manager) GetSweeper() *Sweeper {
	return m.sweeper
}

// Start starts the periodic reconciliation and sweep workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Lifecycle Manager] Starting background reconciliation")

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	reconcileInterval := 15 * time.Minute // Default fallback
	if v, err := strconv.Atoi(env.GetEnv("RECONCILE_INTERVAL_MINUTES", "")); err == nil && v > 0 {
		reconcileInterval = time.Duration(v) * time.Minute
	}
	sweepInterval := 60 * time.Minute // Default fallback
	if v, err := strconv.Atoi(env.GetEnv("SWEEP_INTERVAL_MINUTES", "")); err == nil && v > 0 {
		sweepInterval = time.Duration(v) * time.Minute
	}

	m.reconcileTicker = time.NewTicker(reconcileInterval)
	m.wg.Add(1)
	go m.reconcileWorker(ctx)

	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker(ctx)

	log.Info("[Lifecycle Manager] Started successfully")
}

// Stop stops the background workers. In-flight per-user units finish or are
// aborted uncommitted; already-committed writes stand.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Lifecycle Manager] Stopping background reconciliation...")

	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}
	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	log.Info("[Lifecycle Manager] Stopped successfully")
}

// reconcileWorker runs the periodic full reconciliation pass
func (m *Manager) reconcileWorker(ctx context.Context) {
	defer m.wg.Done()
	log.Infof("[Lifecycle Manager] Started reconcile worker")

	for {
		select {
		case <-m.stopCh:
			log.Info("[Lifecycle Manager] Reconcile worker stopping")
			return
		case <-m.reconcileTicker.C:
			result, err := m.reconciler.ReconcileAll(ctx)
			if err != nil {
				log.Errorf("[Lifecycle Manager] Reconcile pass aborted: %v", err)
			}
			if len(result.Failed) > 0 {
				log.Warnf("[Lifecycle Manager] Reconcile pass: %d ok, %d failed", result.Reconciled, len(result.Failed))
			} else {
				log.Debugf("[Lifecycle Manager] Reconcile pass: %d ok", result.Reconciled)
			}
		}
	}
}

// sweepWorker runs the periodic deletion sweep
func (m *Manager) sweepWorker(ctx context.Context) {
	defer m.wg.Done()
	log.Infof("[Lifecycle Manager] Started sweep worker")

	for {
		select {
		case <-m.stopCh:
			log.Info("[Lifecycle Manager] Sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			result, err := m.sweeper.Sweep(ctx)
			if err != nil {
				log.Errorf("[Lifecycle Manager] Sweep aborted: %v", err)
				continue
			}
			if result.Candidates > 0 {
				log.Infof("[Lifecycle Manager] Sweep %s: deleted %d/%d", result.RunID, result.Deleted, result.Candidates)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunSweepOnce exposes a manual trigger for a single sweep (admin use).
func (m *Manager) RunSweepOnce(ctx context.Context) (SweepResult, error) {
	return m.sweeper.Sweep(ctx)
}

// RunReconcileOnce exposes a manual trigger for a full reconcile pass (admin use).
func (m *Manager) RunReconcileOnce(ctx context.Context) (BatchResult, error) {
	return m.reconciler.ReconcileAll(ctx)
}
