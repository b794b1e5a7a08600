// Package rpcclient defines the capability surface this engine needs
// from an upstream EVM node client (spec.md §6 "RPC capabilities
// required of the upstream chain client") and a thin implementation on
// top of go-ethereum's ethclient.
package rpcclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// RequestClient is the required request/response surface: current
// block height, a block range log query, and a full block fetch.
// Every chain MUST have one (spec.md §4.1).
type RequestClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	Close() error
}

// StreamClient is the optional push-based surface: new block headers
// and log subscriptions. A chain without a reachable streaming
// endpoint runs on RequestClient + polling alone (spec.md §4.1, §4.4).
type StreamClient interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	Close() error
}

// HealthChecker is implemented by RequestClient decorators that track
// a circuit breaker over the underlying endpoint. Callers type-assert
// a RequestClient to this before deciding whether a call is worth
// attempting right now.
type HealthChecker interface {
	Healthy() bool
}
