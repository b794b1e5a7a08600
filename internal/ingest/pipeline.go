// Package ingest holds the block and event ingestors (C3/C4) and the
// shared pipeline they feed (C6).
package ingest

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/deposit"
	"github.com/chainwatch/depositengine/internal/metrics"
	"github.com/chainwatch/depositengine/internal/notify"
)

// Pipeline is C6: the single entry point both ingestors use to record
// a detected transfer. It is the dedup, persist, and notify
// chokepoint, so uniqueness on tx_hash is enforced in exactly one
// place regardless of which ingestion path observed the transfer
// first (spec.md §4.5, §9).
type Pipeline struct {
	store    deposit.Store
	notifier notify.Notifier
	metrics  metrics.Engine
	logger   *zap.Logger
}

// NewPipeline builds a Pipeline over store, notifying via notifier.
func NewPipeline(store deposit.Store, notifier notify.Notifier, m metrics.Engine, logger *zap.Logger) *Pipeline {
	return &Pipeline{store: store, notifier: notifier, metrics: m, logger: logger}
}

// Transfer describes one detected, not-yet-recorded value transfer.
type Transfer struct {
	TxHash           string
	Chain            string
	MonitoredAddress string
	TokenAddress     string
	Asset            deposit.Asset
	Amount           decimal.Decimal
	Decimals         int
	BlockNumber      uint64
}

// Record implements spec.md §4.5. Zero-value transfers never reach
// here (invariant 4: amount > 0) — callers filter before calling
// Record.
func (p *Pipeline) Record(t Transfer) {
	if !t.Amount.IsPositive() {
		p.logger.Warn("dropping non-positive transfer, should have been filtered upstream",
			zap.String("tx_hash", t.TxHash), zap.String("chain", t.Chain))
		return
	}

	existing, err := p.store.FindByTxHash(t.TxHash)
	if err != nil {
		p.logger.Error("dedup lookup failed", zap.String("tx_hash", t.TxHash), zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	d := deposit.NewDeposit(t.TxHash, t.Chain, t.MonitoredAddress, t.TokenAddress, t.Asset, t.Amount, t.Decimals, t.BlockNumber)

	if err := p.store.Save(d); err != nil {
		if err == deposit.ErrDuplicateTxHash {
			// Another ingestion path won the race; this is success,
			// not an error (spec.md §4.5 step 3, §9).
			return
		}
		p.logger.Error("failed to save new deposit", zap.String("tx_hash", t.TxHash), zap.Error(err))
		return
	}

	p.metrics.RecordDepositDetected(t.Chain, string(t.Asset))
	notify.Safe(p.logger, func() { p.notifier.OnNewDeposit(d) })
}
