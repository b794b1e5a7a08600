package rpcclient

import (
	"sync"
	"time"
)

// HealthTracker is a circuit breaker over a single chain's RPC
// endpoint, adapted from the pack's RPC failover pattern (originally
// designed for round-robin across many endpoints) down to the single
// required/streaming endpoint per chain this engine dials. It doesn't
// gate calls itself; the confirmation tracker consults it (through
// TrackedRequestClient.Healthy) before deciding whether a tick is worth
// attempting. The ingestors do not consult it.
type HealthTracker struct {
	mu sync.Mutex

	failureThreshold  int
	circuitOpenWindow time.Duration

	consecutiveFailures int
	circuitOpen         bool
	lastFailure         time.Time
}

// NewHealthTracker creates a tracker that opens its circuit after 3
// consecutive failures and allows a retry 30s later.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		failureThreshold:  3,
		circuitOpenWindow: 30 * time.Second,
	}
}

// RecordSuccess closes the circuit and resets the failure streak.
func (t *HealthTracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures = 0
	t.circuitOpen = false
}

// RecordFailure bumps the failure streak and opens the circuit once
// the threshold is reached.
func (t *HealthTracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures++
	t.lastFailure = time.Now()
	if t.consecutiveFailures >= t.failureThreshold {
		t.circuitOpen = true
	}
}

// IsHealthy reports whether calls should still be attempted. An open
// circuit self-heals once circuitOpenWindow has elapsed since the last
// failure, so a recovered endpoint is retried without manual reset.
func (t *HealthTracker) IsHealthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.circuitOpen {
		return true
	}
	return time.Since(t.lastFailure) >= t.circuitOpenWindow
}
