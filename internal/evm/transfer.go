// Package evm holds small, chain-agnostic helpers shared by the block
// and event ingestors: address comparison, amount scaling, and ERC-20
// Transfer log decoding.
package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// TransferEventSignature is keccak256("Transfer(address,address,uint256)"),
// the topics[0] every ERC-20 Transfer log carries.
var TransferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// SameAddress compares two hex addresses case-insensitively (spec.md
// §9: "the specification mandates case-insensitive comparison
// everywhere addresses are compared").
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ScaleAmount divides raw by 10^decimals, returning an arbitrary
// precision decimal.Decimal scaled to the token's (or native coin's)
// denomination.
func ScaleAmount(raw *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, 0).Shift(int32(-decimals))
}

// DecodeTransferLog extracts the recipient address and raw value from
// an ERC-20 Transfer log. It validates topic/data shape and returns an
// error for anything malformed (spec.md §7 "Decode error").
func DecodeTransferLog(log types.Log) (to common.Address, value *big.Int, err error) {
	if len(log.Topics) < 3 {
		return common.Address{}, nil, fmt.Errorf("transfer log %s: expected 3 topics, got %d", log.TxHash.Hex(), len(log.Topics))
	}
	if log.Topics[0] != TransferEventSignature {
		return common.Address{}, nil, fmt.Errorf("transfer log %s: unexpected topic0 %s", log.TxHash.Hex(), log.Topics[0].Hex())
	}
	if len(log.Data) != 32 {
		return common.Address{}, nil, fmt.Errorf("transfer log %s: expected 32 bytes of data, got %d", log.TxHash.Hex(), len(log.Data))
	}

	to = common.BytesToAddress(log.Topics[2].Bytes())
	value = new(big.Int).SetBytes(log.Data)
	return to, value, nil
}
