package utils

import (
	"context"
	"sync"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Checks    map[string]bool `json:"checks"`
	CheckedAt time.Time       `json:"checkedAt"`
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// RunHealthChecks runs every check once and stores the snapshot.
func RunHealthChecks(ctx context.Context, checks map[string]HealthCheck) HealthStatus {
	results := make(map[string]bool, len(checks))
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		results[name] = check(cctx) == nil
		cancel()
	}
	status := HealthStatus{Checks: results, CheckedAt: time.Now()}

	mu.Lock()
	currentHealth = status
	mu.Unlock()
	return status
}

// StartHealthMonitor performs periodic health checks until ctx is done.
func StartHealthMonitor(ctx context.Context, interval time.Duration, checks map[string]HealthCheck) {
	RunHealthChecks(ctx, checks)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				RunHealthChecks(ctx, checks)
			}
		}
	}()
}
