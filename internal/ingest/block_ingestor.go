package ingest

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/chainerr"
	"github.com/chainwatch/depositengine/internal/config"
	"github.com/chainwatch/depositengine/internal/deposit"
	"github.com/chainwatch/depositengine/internal/evm"
	"github.com/chainwatch/depositengine/internal/rpcclient"
)

// nativeDecimals is the scaling factor for a chain's native coin
// (spec.md §9: the specification fixes the scaled form at 10^18).
const nativeDecimals = 18

// BlockIngestor is C3: it subscribes to new block headers for one
// chain, fetches the full block, and scans its transactions for
// native-coin transfers to monitored wallets. Token transfers are left
// to the per-(chain, token) EventIngestor this type starts on demand.
type BlockIngestor struct {
	chain    string
	request  rpcclient.RequestClient
	stream   rpcclient.StreamClient
	monitors []config.MonitorConfig
	pipeline *Pipeline
	logger   *zap.Logger

	startEventIngestor func(tokenAddress string, decimals int)
}

// NewBlockIngestor builds a block ingestor for chain. Run calls
// startEventIngestor once for every monitor with a token_address (a
// token shared by several monitors is passed more than once) to bring
// up the matching EventIngestor (spec.md §4.3 step 3).
func NewBlockIngestor(chain string, request rpcclient.RequestClient, stream rpcclient.StreamClient, monitors []config.MonitorConfig, pipeline *Pipeline, logger *zap.Logger, startEventIngestor func(tokenAddress string, decimals int)) *BlockIngestor {
	return &BlockIngestor{
		chain:              chain,
		request:            request,
		stream:             stream,
		monitors:           monitors,
		pipeline:           pipeline,
		logger:             logger,
		startEventIngestor: startEventIngestor,
	}
}

// Run subscribes to new heads (if a streaming client is available) and
// blocks until ctx is cancelled or the subscription errors. It first
// ensures an EventIngestor exists for every token monitor, since those
// run independently of block delivery (spec.md §4.3 step 3).
func (b *BlockIngestor) Run(ctx context.Context) {
	for _, m := range b.monitors {
		if m.TokenAddress != "" {
			b.startEventIngestor(m.TokenAddress, m.TokenDecimals)
		}
	}

	if b.stream == nil {
		b.logger.Info("no streaming client configured, block ingestor idle; relying on confirmation polling for liveness",
			zap.String("chain", b.chain))
		return
	}

	headers := make(chan *types.Header, 32)
	sub, err := b.stream.SubscribeNewHead(ctx, headers)
	if err != nil {
		b.logger.Error("failed to subscribe to new heads", zap.String("chain", b.chain), zap.Error(err))
		return
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			b.logger.Error("block header subscription ended", zap.String("chain", b.chain), zap.Error(err))
			return
		case header := <-headers:
			b.handleHeader(ctx, header)
		}
	}
}

func (b *BlockIngestor) handleHeader(ctx context.Context, header *types.Header) {
	hasNativeMonitor := false
	for _, m := range b.monitors {
		if m.TokenAddress == "" {
			hasNativeMonitor = true
			break
		}
	}
	if !hasNativeMonitor {
		return
	}

	block, err := b.request.BlockByNumber(ctx, header.Number)
	if err != nil {
		cerr := chainerr.Wrap(b.chain, "fetch block body", err)
		b.logger.Error("failed to fetch block body", zap.Uint64("block", header.Number.Uint64()), zap.Error(cerr))
		return
	}

	scanNativeTransfers(b.chain, block, b.monitors, b.pipeline)
}

// scanNativeTransfers implements spec.md §4.3 step 2: every monitor
// with no token_address is matched against every transaction's `to`
// and `value`. It is a free function, not a BlockIngestor method, so
// the HTTP fallback poller (chain_runner.go) can reuse it without a
// streaming BlockIngestor instance.
func scanNativeTransfers(chain string, block *types.Block, monitors []config.MonitorConfig, pipeline *Pipeline) {
	for _, tx := range block.Transactions() {
		to := tx.To()
		if to == nil {
			continue // contract creation, never a deposit
		}
		value := tx.Value()
		if value == nil || value.Sign() <= 0 {
			continue
		}

		for _, m := range monitors {
			if m.TokenAddress != "" {
				continue
			}
			if !evm.SameAddress(to.Hex(), m.WalletAddress) {
				continue
			}

			pipeline.Record(Transfer{
				TxHash:           tx.Hash().Hex(),
				Chain:            chain,
				MonitoredAddress: m.WalletAddress,
				Asset:            deposit.AssetNative,
				Amount:           evm.ScaleAmount(value, nativeDecimals),
				Decimals:         nativeDecimals,
				BlockNumber:      block.NumberU64(),
			})
		}
	}
}
