// Package metrics records observability data for the deposit engine:
// RPC call outcomes and deposit lifecycle counters. The interface
// shape follows the teacher's hand-rolled ChainMetrics contract; the
// implementation uses the real Prometheus client library instead of a
// hand-rolled exposition-format writer.
package metrics

import "time"

// Engine is the metrics surface consumed by internal/rpcclient,
// internal/ingest, and internal/confirm.
type Engine interface {
	// RecordRPCCall records one RPC call's duration and outcome.
	RecordRPCCall(chain, method string, duration time.Duration, success bool)

	// RecordDepositDetected increments the new-deposit counter for a
	// chain/asset pair.
	RecordDepositDetected(chain string, asset string)

	// RecordDepositConfirmed increments the confirmed-deposit counter.
	RecordDepositConfirmed(chain string, asset string)

	// RecordConfirmationTick records one confirmation-tracker tick's
	// duration and whether it completed; success is false when the tick
	// was skipped (open circuit) or aborted (pending-deposit load or
	// head read failed).
	RecordConfirmationTick(chain string, duration time.Duration, success bool)
}
