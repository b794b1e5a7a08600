package ingest

import (
	"context"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/chainerr"
	"github.com/chainwatch/depositengine/internal/config"
	"github.com/chainwatch/depositengine/internal/rpcclient"
)

// ChainRunner owns one chain's BlockIngestor plus the set of
// EventIngestors for its token monitors, and drives the HTTP polling
// fallback when the chain has no streaming client (spec.md §4.4
// "HTTP fallback").
type ChainRunner struct {
	chain        string
	request      rpcclient.RequestClient
	stream       rpcclient.StreamClient
	monitors     []config.MonitorConfig
	pipeline     *Pipeline
	logger       *zap.Logger
	pollInterval time.Duration

	mu        sync.Mutex
	eventIngs map[string]*EventIngestor
	lastHead  uint64
}

// NewChainRunner builds a runner for one chain.
func NewChainRunner(chain string, request rpcclient.RequestClient, stream rpcclient.StreamClient, monitors []config.MonitorConfig, pipeline *Pipeline, pollInterval time.Duration, logger *zap.Logger) *ChainRunner {
	return &ChainRunner{
		chain:        chain,
		request:      request,
		stream:       stream,
		monitors:     monitors,
		pipeline:     pipeline,
		pollInterval: pollInterval,
		logger:       logger,
		eventIngs:    make(map[string]*EventIngestor),
	}
}

// Run blocks until ctx is cancelled, driving both the block ingestor
// and, for chains without a streaming client, the HTTP fallback
// poller.
func (r *ChainRunner) Run(ctx context.Context) {
	block := NewBlockIngestor(r.chain, r.request, r.stream, r.monitors, r.pipeline, r.logger, r.ensureEventIngestor)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		block.Run(ctx)
	}()

	if r.stream == nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runFallbackLoop(ctx)
		}()
	} else {
		// BlockIngestor.Run also starts an EventIngestor for every token
		// monitor (spec.md §4.3 step 3); ensureEventIngestor starts each
		// token's ingestor only once, so whichever call comes first wins
		// and the other is a no-op.
		for _, m := range r.monitors {
			if m.TokenAddress != "" {
				r.ensureEventIngestor(m.TokenAddress, m.TokenDecimals)
			}
		}
	}

	wg.Wait()
}

// ensureEventIngestor starts (once) the EventIngestor for tokenAddress
// and, when a stream client exists, runs it in the background.
func (r *ChainRunner) ensureEventIngestor(tokenAddress string, decimals int) {
	r.mu.Lock()
	if _, ok := r.eventIngs[tokenAddress]; ok {
		r.mu.Unlock()
		return
	}
	ei := NewEventIngestor(r.chain, tokenAddress, r.request, r.stream, r.monitors, r.pipeline, r.logger)
	r.eventIngs[tokenAddress] = ei
	r.mu.Unlock()

	if r.stream != nil {
		go ei.Run(context.Background())
	}
}

// runFallbackLoop polls BlockNumber on pollInterval and, for every
// newly observed height, scans native transfers and calls PollOnce on
// every token's EventIngestor for that height.
func (r *ChainRunner) runFallbackLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollTick(ctx)
		}
	}
}

func (r *ChainRunner) pollTick(ctx context.Context) {
	head, err := r.request.BlockNumber(ctx)
	if err != nil {
		cerr := chainerr.Wrap(r.chain, "fallback poll: read chain head", err)
		r.logger.Error("fallback poll: failed to read chain head", zap.Error(cerr))
		return
	}

	r.mu.Lock()
	start := r.lastHead
	if start == 0 {
		start = head // first tick: don't replay the entire chain history
	} else {
		start++
	}
	r.lastHead = head
	r.mu.Unlock()

	for h := start; h <= head; h++ {
		r.pollHeight(ctx, h)
	}
}

func (r *ChainRunner) pollHeight(ctx context.Context, height uint64) {
	hasNativeMonitor := false
	for _, m := range r.monitors {
		if m.TokenAddress == "" {
			hasNativeMonitor = true
			break
		}
	}
	if hasNativeMonitor {
		block, err := r.request.BlockByNumber(ctx, new(big.Int).SetUint64(height))
		if err != nil {
			cerr := chainerr.Wrap(r.chain, "fallback poll: fetch block", err)
			r.logger.Error("fallback poll: failed to fetch block", zap.Uint64("block", height), zap.Error(cerr))
		} else {
			scanNativeTransfers(r.chain, block, r.monitors, r.pipeline)
		}
	}

	r.mu.Lock()
	ingestors := make([]*EventIngestor, 0, len(r.eventIngs))
	for _, ei := range r.eventIngs {
		ingestors = append(ingestors, ei)
	}
	r.mu.Unlock()

	for _, ei := range ingestors {
		ei.PollOnce(ctx, height)
	}
}
