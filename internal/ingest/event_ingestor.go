package ingest

import (
	"context"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/chainerr"
	"github.com/chainwatch/depositengine/internal/config"
	"github.com/chainwatch/depositengine/internal/deposit"
	"github.com/chainwatch/depositengine/internal/evm"
	"github.com/chainwatch/depositengine/internal/rpcclient"
)

// maxFallbackAttempts bounds the HTTP fallback's linear backoff
// (spec.md §4.4: "up to 5 attempts").
const maxFallbackAttempts = 5

// EventIngestor is C4: per (chain, token_address), it watches ERC-20
// Transfer logs for that contract and matches them against every
// monitor configured for the same token on the same chain.
type EventIngestor struct {
	chain        string
	tokenAddress string
	request      rpcclient.RequestClient
	stream       rpcclient.StreamClient // nil ⇒ HTTP fallback mode
	monitors     []config.MonitorConfig
	pipeline     *Pipeline
	logger       *zap.Logger
}

// NewEventIngestor builds an event ingestor for one (chain,
// tokenAddress) pair. monitors should be pre-filtered to entries whose
// TokenAddress matches tokenAddress, but handleLog re-checks to stay
// correct if callers pass the full chain monitor list.
func NewEventIngestor(chain, tokenAddress string, request rpcclient.RequestClient, stream rpcclient.StreamClient, monitors []config.MonitorConfig, pipeline *Pipeline, logger *zap.Logger) *EventIngestor {
	return &EventIngestor{
		chain:        chain,
		tokenAddress: tokenAddress,
		request:      request,
		stream:       stream,
		monitors:     monitors,
		pipeline:     pipeline,
		logger:       logger.With(zap.String("token", tokenAddress)),
	}
}

func (e *EventIngestor) filterQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(e.tokenAddress)},
		Topics:    [][]common.Hash{{evm.TransferEventSignature}},
	}
}

// Run installs the streaming log subscription when a stream client is
// available and blocks until ctx is cancelled or the subscription
// errors. Chains without a stream client don't call Run at all; their
// liveness comes from PollOnce being invoked by the caller on every
// newly observed block height (spec.md §4.4 "HTTP fallback").
func (e *EventIngestor) Run(ctx context.Context) {
	if e.stream == nil {
		return
	}

	logs := make(chan types.Log, 64)
	sub, err := e.stream.SubscribeFilterLogs(ctx, e.filterQuery(), logs)
	if err != nil {
		e.logger.Error("failed to subscribe to transfer logs", zap.String("chain", e.chain), zap.Error(err))
		return
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			e.logger.Error("transfer log subscription ended", zap.String("chain", e.chain), zap.Error(err))
			return
		case l := <-logs:
			e.handleLog(l)
		}
	}
}

// handleLog implements spec.md §4.4 steps 1-4.
func (e *EventIngestor) handleLog(l types.Log) {
	to, value, err := evm.DecodeTransferLog(l)
	if err != nil {
		e.logger.Warn("dropping malformed transfer log", zap.String("tx_hash", l.TxHash.Hex()), zap.Error(err))
		return
	}
	if value.Sign() <= 0 {
		return
	}

	for _, m := range e.monitors {
		if !evm.SameAddress(m.TokenAddress, e.tokenAddress) {
			continue
		}
		if !evm.SameAddress(to.Hex(), m.WalletAddress) {
			continue
		}

		e.pipeline.Record(Transfer{
			TxHash:           l.TxHash.Hex(),
			Chain:            e.chain,
			MonitoredAddress: m.WalletAddress,
			TokenAddress:     e.tokenAddress,
			Asset:            deposit.AssetERC20,
			Amount:           evm.ScaleAmount(value, m.TokenDecimals),
			Decimals:         m.TokenDecimals,
			BlockNumber:      l.BlockNumber,
		})
	}
}

// PollOnce is the HTTP fallback path (spec.md §4.4), used only for
// chains with no streaming client. It queries logs for exactly block
// height, retrying with linear backoff (1s, 2s, 3s, ... between
// attempts) while the upstream classifies as rate-limited, up to
// maxFallbackAttempts total FilterLogs calls, and aborting the tick
// immediately on any other error.
func (e *EventIngestor) PollOnce(ctx context.Context, height uint64) {
	q := e.filterQuery()
	blockNum := new(big.Int).SetUint64(height)
	q.FromBlock = blockNum
	q.ToBlock = blockNum

	logs, err := e.fetchWithBackoff(ctx, q)
	if err != nil {
		cerr := chainerr.Wrap(e.chain, "fallback log query", err)
		e.logger.Error("fallback log query failed, dropping this tick", zap.Uint64("block", height), zap.Error(cerr))
		return
	}

	for _, l := range logs {
		e.handleLog(l)
	}
}

func (e *EventIngestor) fetchWithBackoff(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	var result []types.Log

	policy := backoff.WithContext(&linearBackoff{step: time.Second, max: maxFallbackAttempts}, ctx)

	op := func() error {
		logs, err := e.request.FilterLogs(ctx, q)
		if err != nil {
			if chainerr.IsRetryable(err) {
				return err // retry
			}
			return backoff.Permanent(err)
		}
		result = logs
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return result, nil
}

// linearBackoff yields step, 2*step, 3*step, ... between attempts
// (backoff/v4's built-in policies are all exponential or constant, not
// linear, so this is a small custom BackOff). Stopping once attempt
// reaches max caps the total number of FilterLogs calls at max, not
// max+1, so with max = 5 the waits are 1s, 2s, 3s and 4s; a 5s wait
// never occurs.
type linearBackoff struct {
	step    time.Duration
	max     int
	attempt int
}

func (b *linearBackoff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt >= b.max {
		return backoff.Stop
	}
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackoff) Reset() { b.attempt = 0 }

var _ backoff.BackOff = (*linearBackoff)(nil)
