package rpcclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthTracker_OpensAfterThreeFailures(t *testing.T) {
	h := NewHealthTracker()
	assert.True(t, h.IsHealthy())

	h.RecordFailure()
	assert.True(t, h.IsHealthy())
	h.RecordFailure()
	assert.True(t, h.IsHealthy())
	h.RecordFailure()
	assert.False(t, h.IsHealthy())
}

func TestHealthTracker_SuccessClosesCircuit(t *testing.T) {
	h := NewHealthTracker()
	h.RecordFailure()
	h.RecordFailure()
	h.RecordFailure()
	require.False(t, h.IsHealthy())

	h.RecordSuccess()
	assert.True(t, h.IsHealthy())
}

func TestHealthTracker_SelfHealsAfterWindow(t *testing.T) {
	h := NewHealthTracker()
	h.failureThreshold = 1
	h.circuitOpenWindow = 10 * time.Millisecond

	h.RecordFailure()
	assert.False(t, h.IsHealthy())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, h.IsHealthy())
}
