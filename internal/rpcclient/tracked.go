package rpcclient

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainwatch/depositengine/internal/metrics"
)

// TrackedRequestClient wraps a RequestClient, recording metrics for
// every call and feeding a HealthTracker circuit breaker, following
// the teacher's MetricsRPCClient decorator pattern.
type TrackedRequestClient struct {
	inner   RequestClient
	chain   string
	metrics metrics.Engine
	health  *HealthTracker
}

// NewTrackedRequestClient wraps inner for chain.
func NewTrackedRequestClient(inner RequestClient, chain string, m metrics.Engine) *TrackedRequestClient {
	return &TrackedRequestClient{inner: inner, chain: chain, metrics: m, health: NewHealthTracker()}
}

// Healthy reports whether the circuit breaker currently allows calls.
func (c *TrackedRequestClient) Healthy() bool {
	return c.health.IsHealthy()
}

func (c *TrackedRequestClient) call(method string, fn func() error) error {
	start := time.Now()
	err := fn()
	c.metrics.RecordRPCCall(c.chain, method, time.Since(start), err == nil)
	if err != nil {
		c.health.RecordFailure()
	} else {
		c.health.RecordSuccess()
	}
	return err
}

func (c *TrackedRequestClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.call("eth_blockNumber", func() error {
		var innerErr error
		n, innerErr = c.inner.BlockNumber(ctx)
		return innerErr
	})
	return n, err
}

func (c *TrackedRequestClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	var b *types.Block
	err := c.call("eth_getBlockByNumber", func() error {
		var innerErr error
		b, innerErr = c.inner.BlockByNumber(ctx, number)
		return innerErr
	})
	return b, err
}

func (c *TrackedRequestClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call("eth_getLogs", func() error {
		var innerErr error
		logs, innerErr = c.inner.FilterLogs(ctx, q)
		return innerErr
	})
	return logs, err
}

func (c *TrackedRequestClient) Close() error {
	return c.inner.Close()
}

var _ RequestClient = (*TrackedRequestClient)(nil)
