// Package notify defines the downstream notification contract (spec.md
// §6 "Collaborator interfaces") and a couple of small, local
// implementations suitable for tests and single-process deployments.
package notify

import (
	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/deposit"
)

// Notifier forwards deposit state-change events to downstream
// consumers. Implementations MUST be non-blocking or fast; a failure
// inside Notifier must never propagate back into the engine (spec.md
// §7 "Notifier error").
type Notifier interface {
	OnNewDeposit(d *deposit.Deposit)
	OnDepositConfirmed(d *deposit.Deposit)
}

// LoggingNotifier logs both events and otherwise does nothing. It is
// the default notifier for local runs and a safe base to embed in
// richer notifiers that forward to a real downstream queue.
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier creates a Notifier that only logs.
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

func (n *LoggingNotifier) OnNewDeposit(d *deposit.Deposit) {
	n.logger.Info("new deposit detected",
		zap.String("chain", d.Chain),
		zap.String("tx_hash", d.TxHash),
		zap.String("asset", string(d.Asset)),
		zap.String("amount", d.Amount.String()),
	)
}

func (n *LoggingNotifier) OnDepositConfirmed(d *deposit.Deposit) {
	n.logger.Info("deposit confirmed",
		zap.String("chain", d.Chain),
		zap.String("tx_hash", d.TxHash),
		zap.Uint64("confirmations", d.Confirmations),
	)
}

// ChannelNotifier fans events out onto buffered channels, for callers
// (e.g. a future HTTP/event-stream layer) that want to consume
// notifications programmatically rather than parse logs. Sends are
// non-blocking: a full channel drops the event rather than stalling
// the engine, honoring the "MUST be non-blocking" contract.
type ChannelNotifier struct {
	inner    Notifier
	NewDeps  chan *deposit.Deposit
	Confirms chan *deposit.Deposit
}

// NewChannelNotifier wraps inner (typically a LoggingNotifier) and adds
// buffered fan-out channels of the given capacity.
func NewChannelNotifier(inner Notifier, capacity int) *ChannelNotifier {
	return &ChannelNotifier{
		inner:    inner,
		NewDeps:  make(chan *deposit.Deposit, capacity),
		Confirms: make(chan *deposit.Deposit, capacity),
	}
}

func (n *ChannelNotifier) OnNewDeposit(d *deposit.Deposit) {
	n.inner.OnNewDeposit(d)
	select {
	case n.NewDeps <- d:
	default:
	}
}

func (n *ChannelNotifier) OnDepositConfirmed(d *deposit.Deposit) {
	n.inner.OnDepositConfirmed(d)
	select {
	case n.Confirms <- d:
	default:
	}
}

// Safe runs fn and recovers any panic, logging it instead of letting
// it escape. Every call site that invokes a Notifier method goes
// through this so a broken downstream Notifier can never crash the
// engine (spec.md §7 "Notifier error: log; do not roll back the state
// transition").
func Safe(logger *zap.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notifier panicked", zap.Any("recover", r))
		}
	}()
	fn()
}
