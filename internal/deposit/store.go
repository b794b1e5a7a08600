package deposit

import "errors"

// ErrDuplicateTxHash is returned by Save when tx_hash already exists.
// The pipeline (internal/ingest) treats this as a successful dedup,
// not an error (spec.md §4.5 step 3, §7).
var ErrDuplicateTxHash = errors.New("deposit: duplicate tx_hash")

// Store is the persistent ledger contract (spec.md §4.2, C2). Any
// backing engine satisfying this interface may be used; this package
// ships an in-memory implementation (memstore.go) and a Postgres one
// (sqlstore/).
type Store interface {
	// FindByTxHash returns the deposit with the given hash, or nil if
	// none exists yet.
	FindByTxHash(txHash string) (*Deposit, error)

	// Save inserts d when it has no ID yet, or updates the stored row
	// (status and confirmations) when it has one. Inserting a TxHash
	// that already exists returns ErrDuplicateTxHash instead of
	// updating, so concurrent Save calls for the same new TxHash let
	// only one insert win; the losers return ErrDuplicateTxHash.
	Save(d *Deposit) error

	// FindPending returns every deposit whose status is UNCONFIRMED or
	// CONFIRMING, across all chains. Callers filter by chain
	// themselves (spec.md §4.2).
	FindPending() ([]*Deposit, error)
}
