package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/ManuelReschke/DeskFox/app/models"
	"github.com/ManuelReschke/DeskFox/app/repository"
	"github.com/ManuelReschke/DeskFox/internal/pkg/cache"
)

const (
	CacheKeyTotalUsers          = "statistics:users:total"
	CacheKeyActiveTrials        = "statistics:trials:active"
	CacheKeyActiveSubscriptions = "statistics:subscriptions:active"
	CacheKeyLinkedWorkspaces    = "statistics:workspaces:linked"
	CacheKeyStuckDeletions      = "statistics:deletions:stuck"
	CacheExpiration             = 30 * time.Minute
)

// SystemMetrics is the operational summary exposed to administrators.
type SystemMetrics struct {
	TotalUsers              int `json:"total_users"`
	ActiveTrials            int `json:"active_trials"`
	ActiveSubscriptions     int `json:"active_subscriptions"`
	LinkedWorkspaceAccounts int `json:"linked_workspace_accounts"`
	// StuckDeletions counts accounts parked in scheduled_for_deletion; a
	// growing number means external teardown keeps failing and needs an
	// operator.
	StuckDeletions int `json:"stuck_deletions"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cache should be refreshed
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the interval has passed
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// UpdateStatisticsCache recomputes all system metrics and stores them in the cache
func UpdateStatisticsCache() error {
	repos := repository.GetGlobalFactory().GetRepositories()

	totalUsers, err := repos.User.Count()
	if err != nil {
		log.Printf("Error counting users: %v", err)
		return err
	}
	activeTrials, err := repos.Trial.CountByStatus(models.TrialStatusActive)
	if err != nil {
		log.Printf("Error counting active trials: %v", err)
		return err
	}
	activeSubs, err := repos.Billing.CountLinkagesByStatus(models.BillingStatusActive, models.BillingStatusTrialing)
	if err != nil {
		log.Printf("Error counting active subscriptions: %v", err)
		return err
	}
	linkedWorkspaces, err := repos.Workspace.CountLinked()
	if err != nil {
		log.Printf("Error counting workspace accounts: %v", err)
		return err
	}
	stuck, err := repos.Trial.CountByStatus(models.TrialStatusScheduledForDeletion)
	if err != nil {
		log.Printf("Error counting stuck deletions: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyTotalUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyActiveTrials, strconv.FormatInt(activeTrials, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyActiveSubscriptions, strconv.FormatInt(activeSubs, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyLinkedWorkspaces, strconv.FormatInt(linkedWorkspaces, 10), CacheExpiration); err != nil {
		return err
	}
	return cache.Set(CacheKeyStuckDeletions, strconv.FormatInt(stuck, 10), CacheExpiration)
}

// GetSystemMetrics returns the cached metrics, refreshing the cache when
// needed. Cache misses fall back to live counts.
func GetSystemMetrics() (*SystemMetrics, error) {
	UpdateCacheIfNeeded()

	metrics := &SystemMetrics{}
	var err error

	if metrics.TotalUsers, err = cache.GetInt(CacheKeyTotalUsers); err != nil {
		return liveSystemMetrics()
	}
	if metrics.ActiveTrials, err = cache.GetInt(CacheKeyActiveTrials); err != nil {
		return liveSystemMetrics()
	}
	if metrics.ActiveSubscriptions, err = cache.GetInt(CacheKeyActiveSubscriptions); err != nil {
		return liveSystemMetrics()
	}
	if metrics.LinkedWorkspaceAccounts, err = cache.GetInt(CacheKeyLinkedWorkspaces); err != nil {
		return liveSystemMetrics()
	}
	if metrics.StuckDeletions, err = cache.GetInt(CacheKeyStuckDeletions); err != nil {
		return liveSystemMetrics()
	}
	return metrics, nil
}

func liveSystemMetrics() (*SystemMetrics, error) {
	repos := repository.GetGlobalFactory().GetRepositories()

	totalUsers, err := repos.User.Count()
	if err != nil {
		return nil, err
	}
	activeTrials, err := repos.Trial.CountByStatus(models.TrialStatusActive)
	if err != nil {
		return nil, err
	}
	activeSubs, err := repos.Billing.CountLinkagesByStatus(models.BillingStatusActive, models.BillingStatusTrialing)
	if err != nil {
		return nil, err
	}
	linkedWorkspaces, err := repos.Workspace.CountLinked()
	if err != nil {
		return nil, err
	}
	stuck, err := repos.Trial.CountByStatus(models.TrialStatusScheduledForDeletion)
	if err != nil {
		return nil, err
	}

	return &SystemMetrics{
		TotalUsers:              int(totalUsers),
		ActiveTrials:            int(activeTrials),
		ActiveSubscriptions:     int(activeSubs),
		LinkedWorkspaceAccounts: int(linkedWorkspaces),
		StuckDeletions:          int(stuck),
	}, nil
}
