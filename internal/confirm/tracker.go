// Package confirm implements the confirmation tracker (C5): a
// fixed-cadence scheduler that advances every pending deposit through
// the UNCONFIRMED → CONFIRMING → CONFIRMED state machine, backed by a
// shared worker pool bounded by a semaphore (spec.md §4.6, §5, §9
// "reimplement as a fixed-interval scheduler with a shared worker pool
// of ≥5").
package confirm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/chainwatch/depositengine/internal/chainerr"
	"github.com/chainwatch/depositengine/internal/deposit"
	"github.com/chainwatch/depositengine/internal/metrics"
	"github.com/chainwatch/depositengine/internal/notify"
	"github.com/chainwatch/depositengine/internal/rpcclient"
)

// ChainSource resolves the collaborators a Tracker needs per chain.
type ChainSource interface {
	SupportedChains() []string
	RequestClient(chain string) rpcclient.RequestClient
	RequiredConfirmations(chain string) int
}

// Tracker runs one confirmation tick per chain on a fixed interval,
// dispatching each chain's tick onto a shared worker pool.
type Tracker struct {
	chains   ChainSource
	store    deposit.Store
	notifier notify.Notifier
	metrics  metrics.Engine
	logger   *zap.Logger

	interval time.Duration
	sem      *semaphore.Weighted
}

// NewTracker builds a Tracker. workerPoolSize is clamped up to 5, the
// minimum the concurrency model requires (spec.md §5).
func NewTracker(chains ChainSource, store deposit.Store, notifier notify.Notifier, m metrics.Engine, interval time.Duration, workerPoolSize int, logger *zap.Logger) *Tracker {
	if workerPoolSize < 5 {
		workerPoolSize = 5
	}
	return &Tracker{
		chains:   chains,
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		interval: interval,
		sem:      semaphore.NewWeighted(int64(workerPoolSize)),
	}
}

// Run blocks until ctx is cancelled, firing one round of per-chain
// ticks every interval. In-flight ticks are allowed to complete after
// cancellation is observed for the *next* round, matching §5
// "confirmation scheduler is stopped (in-flight ticks may complete)".
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runRound(ctx)
		}
	}
}

func (t *Tracker) runRound(ctx context.Context) {
	for _, chain := range t.chains.SupportedChains() {
		chain := chain
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return // context cancelled while waiting for a worker slot
		}
		go func() {
			defer t.sem.Release(1)
			t.tick(ctx, chain)
		}()
	}
}

// tick implements spec.md §4.6 for one chain.
func (t *Tracker) tick(ctx context.Context, chain string) {
	start := time.Now()

	client := t.chains.RequestClient(chain)
	if client == nil {
		return
	}

	if hc, ok := client.(rpcclient.HealthChecker); ok && !hc.Healthy() {
		t.logger.Warn("skipping tick: circuit open for chain", zap.String("chain", chain))
		t.metrics.RecordConfirmationTick(chain, time.Since(start), false)
		return
	}

	pending, err := t.store.FindPending()
	if err != nil {
		t.logger.Error("failed to load pending deposits", zap.String("chain", chain), zap.Error(err))
		t.metrics.RecordConfirmationTick(chain, time.Since(start), false)
		return
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		cerr := chainerr.Wrap(chain, "read chain head", err)
		t.logger.Error("failed to read chain head, skipping this tick", zap.Error(cerr))
		t.metrics.RecordConfirmationTick(chain, time.Since(start), false)
		return
	}

	required := t.chains.RequiredConfirmations(chain)

	for _, d := range pending {
		if !strings.EqualFold(d.Chain, chain) {
			continue
		}
		t.advance(d, head, required)
	}

	t.metrics.RecordConfirmationTick(chain, time.Since(start), true)
}

// advance implements the per-deposit state transition (spec.md §4.6
// step 3). Failures here are logged and never abort the tick.
func (t *Tracker) advance(d *deposit.Deposit, head uint64, required int) {
	if head < d.BlockNumber {
		return // tracked head transiently lags the ingestor's reported block
	}
	confirmCount := head - d.BlockNumber

	justConfirmed := int(confirmCount) >= required
	newStatus := deposit.StatusConfirming
	if justConfirmed {
		newStatus = deposit.StatusConfirmed
	}

	// Invariant 2 (spec.md §3): status never regresses. A stale or
	// re-delivered head read could otherwise push confirmCount below
	// what was already observed; refuse rather than corrupt the ledger.
	if newStatus.Before(d.Status) {
		t.logger.Warn("refusing backward status transition",
			zap.String("chain", d.Chain), zap.String("tx_hash", d.TxHash),
			zap.String("current", string(d.Status)), zap.String("computed", string(newStatus)))
		return
	}

	d.Confirmations = confirmCount
	d.Status = newStatus

	if err := t.store.Save(d); err != nil {
		t.logger.Error("failed to save confirmation progress",
			zap.String("chain", d.Chain), zap.String("tx_hash", d.TxHash), zap.Error(err))
		return
	}

	// d arrives here only via FindPending, which excludes CONFIRMED
	// rows, so reaching the threshold here always means this tick is
	// the terminal transition (spec.md §4.6 state machine).
	if justConfirmed {
		t.metrics.RecordDepositConfirmed(d.Chain, string(d.Asset))
		notify.Safe(t.logger, func() { t.notifier.OnDepositConfirmed(d) })
	}
}
