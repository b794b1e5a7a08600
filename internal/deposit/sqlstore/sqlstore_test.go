package sqlstore

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/chainwatch/depositengine/internal/deposit"
)

func TestRow_ToDeposit_NativeWhenTokenAddressAbsent(t *testing.T) {
	r := row{
		ID:               1,
		TxHash:           "0xTX1",
		MonitoredAddress: sql.NullString{String: "0xAAA", Valid: true},
		Chain:            "ETH",
		Amount:           decimal.NewFromInt(1),
		Decimals:         18,
		TxBlock:          100,
		Status:           string(deposit.StatusUnconfirmed),
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	d := r.toDeposit()
	assert.Equal(t, deposit.AssetNative, d.Asset)
	assert.Equal(t, "", d.TokenAddress)
	assert.Equal(t, uint64(100), d.BlockNumber)
}

func TestRow_ToDeposit_ERC20WhenTokenAddressPresent(t *testing.T) {
	r := row{
		ID:           2,
		TxHash:       "0xTX2",
		Chain:        "ETH",
		TokenAddress: sql.NullString{String: "0xCCC", Valid: true},
		Amount:       decimal.NewFromInt(5),
		Decimals:     6,
		TxBlock:      500,
		Status:       string(deposit.StatusConfirming),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	d := r.toDeposit()
	assert.Equal(t, deposit.AssetERC20, d.Asset)
	assert.Equal(t, "0xCCC", d.TokenAddress)
}

func TestNullable(t *testing.T) {
	assert.False(t, nullable("").Valid)
	ns := nullable("0xAAA")
	assert.True(t, ns.Valid)
	assert.Equal(t, "0xAAA", ns.String)
}
