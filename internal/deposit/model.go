// Package deposit defines the core Deposit entity and its persistent
// ledger contract.
package deposit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the deposit's position in the confirmation state machine.
type Status string

const (
	StatusUnconfirmed Status = "UNCONFIRMED"
	StatusConfirming  Status = "CONFIRMING"
	StatusConfirmed   Status = "CONFIRMED"
)

// rank orders statuses so progression can be checked monotonic.
var rank = map[Status]int{
	StatusUnconfirmed: 0,
	StatusConfirming:  1,
	StatusConfirmed:   2,
}

// Before reports whether s precedes other in the reporting direction.
func (s Status) Before(other Status) bool {
	return rank[s] < rank[other]
}

// Asset distinguishes the chain's native coin from an ERC-20 token.
type Asset string

const (
	AssetNative Asset = "NATIVE"
	AssetERC20  Asset = "ERC20"
)

// Deposit is the single core entity: one detected, confirmable transfer.
type Deposit struct {
	ID               int64
	TxHash           string
	MonitoredAddress string
	UserAddress      string
	Chain            string
	TokenAddress     string
	Asset            Asset
	Amount           decimal.Decimal
	Decimals         int
	BlockNumber      uint64
	Status           Status
	Confirmations    uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDeposit constructs an UNCONFIRMED deposit ready for first insert.
// asset/tokenAddress/decimals must already agree: token_address present
// iff asset == AssetERC20 (invariant 3 in spec.md §3).
func NewDeposit(txHash, chain, monitoredAddress, tokenAddress string, asset Asset, amount decimal.Decimal, decimals int, blockNumber uint64) *Deposit {
	now := time.Now()
	return &Deposit{
		TxHash:           txHash,
		Chain:            chain,
		MonitoredAddress: monitoredAddress,
		TokenAddress:     tokenAddress,
		Asset:            asset,
		Amount:           amount,
		Decimals:         decimals,
		BlockNumber:      blockNumber,
		Status:           StatusUnconfirmed,
		Confirmations:    0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
