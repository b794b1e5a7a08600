// Package sqlstore implements deposit.Store on top of Postgres via
// sqlx, following the schema in spec.md §6.
package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/chainwatch/depositengine/internal/deposit"
)

const schema = `
CREATE TABLE IF NOT EXISTS deposits (
	id              BIGSERIAL PRIMARY KEY,
	tx_hash         TEXT NOT NULL UNIQUE,
	monitored_address TEXT,
	user_address    TEXT,
	chain           TEXT NOT NULL,
	token_address   TEXT,
	amount          NUMERIC(38,18) NOT NULL,
	decimals        INTEGER NOT NULL DEFAULT 18,
	tx_block        BIGINT NOT NULL,
	status          TEXT NOT NULL,
	confirmations   BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS deposits_status_idx ON deposits (status);
`

// Store is a Postgres-backed deposit.Store.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, applies the schema (idempotent), and returns a
// ready Store. maxOpenConns <= 0 leaves the driver default in place.
func Open(dsn string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to deposit store: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply deposit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type row struct {
	ID               int64           `db:"id"`
	TxHash           string          `db:"tx_hash"`
	MonitoredAddress sql.NullString  `db:"monitored_address"`
	UserAddress      sql.NullString  `db:"user_address"`
	Chain            string          `db:"chain"`
	TokenAddress     sql.NullString  `db:"token_address"`
	Amount           decimal.Decimal `db:"amount"`
	Decimals         int             `db:"decimals"`
	TxBlock          int64           `db:"tx_block"`
	Status           string          `db:"status"`
	Confirmations    int64           `db:"confirmations"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r row) toDeposit() *deposit.Deposit {
	d := &deposit.Deposit{
		ID:               r.ID,
		TxHash:           r.TxHash,
		MonitoredAddress: r.MonitoredAddress.String,
		UserAddress:      r.UserAddress.String,
		Chain:            r.Chain,
		TokenAddress:     r.TokenAddress.String,
		Amount:           r.Amount,
		Decimals:         r.Decimals,
		BlockNumber:      uint64(r.TxBlock),
		Status:           deposit.Status(r.Status),
		Confirmations:    uint64(r.Confirmations),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	d.Asset = deposit.AssetNative
	if d.TokenAddress != "" {
		d.Asset = deposit.AssetERC20
	}
	return d
}

// FindByTxHash implements deposit.Store.
func (s *Store) FindByTxHash(txHash string) (*deposit.Deposit, error) {
	var r row
	err := s.db.Get(&r, `SELECT * FROM deposits WHERE tx_hash = $1`, txHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find deposit by tx_hash: %w", err)
	}
	return r.toDeposit(), nil
}

// Save implements deposit.Store: insert when d.ID is unset, update
// otherwise. A unique-violation on insert is translated to
// deposit.ErrDuplicateTxHash per spec.md §4.5 step 3 / §7.
func (s *Store) Save(d *deposit.Deposit) error {
	if d.ID == 0 {
		return s.insert(d)
	}
	return s.update(d)
}

func (s *Store) insert(d *deposit.Deposit) error {
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now

	var id int64
	err := s.db.QueryRow(
		`INSERT INTO deposits
			(tx_hash, monitored_address, user_address, chain, token_address,
			 amount, decimals, tx_block, status, confirmations, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 RETURNING id`,
		d.TxHash, nullable(d.MonitoredAddress), nullable(d.UserAddress), d.Chain,
		nullable(d.TokenAddress), d.Amount, d.Decimals, int64(d.BlockNumber),
		string(d.Status), int64(d.Confirmations), d.CreatedAt, d.UpdatedAt,
	).Scan(&id)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return deposit.ErrDuplicateTxHash
		}
		return fmt.Errorf("insert deposit: %w", err)
	}
	d.ID = id
	return nil
}

func (s *Store) update(d *deposit.Deposit) error {
	d.UpdatedAt = time.Now()
	_, err := s.db.Exec(
		`UPDATE deposits SET status = $1, confirmations = $2, updated_at = $3 WHERE id = $4`,
		string(d.Status), int64(d.Confirmations), d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update deposit: %w", err)
	}
	return nil
}

// FindPending implements deposit.Store.
func (s *Store) FindPending() ([]*deposit.Deposit, error) {
	var rows []row
	err := s.db.Select(&rows,
		`SELECT * FROM deposits WHERE status IN ($1, $2)`,
		string(deposit.StatusUnconfirmed), string(deposit.StatusConfirming),
	)
	if err != nil {
		return nil, fmt.Errorf("find pending deposits: %w", err)
	}
	out := make([]*deposit.Deposit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDeposit())
	}
	return out, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
