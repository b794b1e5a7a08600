package ingest

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/config"
	"github.com/chainwatch/depositengine/internal/deposit"
	"github.com/chainwatch/depositengine/internal/evm"
	"github.com/chainwatch/depositengine/internal/rpcclient"
)

const testToken = "0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC"

func transferEventLog(tokenAddr, toAddr common.Address, value *big.Int, blockNumber uint64) types.Log {
	valBytes := make([]byte, 32)
	value.FillBytes(valBytes)
	return types.Log{
		Address: tokenAddr,
		Topics: []common.Hash{
			evm.TransferEventSignature,
			common.HexToHash("0xaaaa"),
			common.BytesToHash(toAddr.Bytes()),
		},
		Data:        valBytes,
		TxHash:      common.HexToHash("0xTX"),
		BlockNumber: blockNumber,
	}
}

func TestEventIngestor_PollOnce_RecordsMatchingTransfer(t *testing.T) {
	token := common.HexToAddress(testToken)
	wallet := common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	value := big.NewInt(5_000_000)

	request := rpcclient.NewMockRequestClient()
	request.SetLogs([]types.Log{transferEventLog(token, wallet, value, 500)}, nil)

	store := deposit.NewMemoryStore()
	notifier := &recordingNotifier{}
	pipeline := newTestPipeline(store, notifier)

	monitors := []config.MonitorConfig{{WalletAddress: wallet.Hex(), TokenAddress: token.Hex(), TokenDecimals: 6}}
	ei := NewEventIngestor("ETH", token.Hex(), request, nil, monitors, pipeline, zap.NewNop())

	ei.PollOnce(context.Background(), 500)

	found, err := store.FindByTxHash(common.HexToHash("0xTX").Hex())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, deposit.AssetERC20, found.Asset)
	assert.Equal(t, uint64(500), found.BlockNumber)
}

type flakyRateLimitClient struct {
	*rpcclient.MockRequestClient
	failuresLeft int32
	sleeps       []time.Duration
	lastCall     time.Time
}

func (c *flakyRateLimitClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	now := time.Now()
	if !c.lastCall.IsZero() {
		c.sleeps = append(c.sleeps, now.Sub(c.lastCall))
	}
	c.lastCall = now

	if atomic.AddInt32(&c.failuresLeft, -1) >= 0 {
		return nil, errors.New("429 Too Many Requests")
	}
	return c.MockRequestClient.FilterLogs(ctx, q)
}

func TestEventIngestor_PollOnce_RetriesOnRateLimitThenSucceeds(t *testing.T) {
	token := common.HexToAddress(testToken)
	wallet := common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	value := big.NewInt(5_000_000)

	inner := rpcclient.NewMockRequestClient()
	inner.SetLogs([]types.Log{transferEventLog(token, wallet, value, 500)}, nil)
	client := &flakyRateLimitClient{MockRequestClient: inner, failuresLeft: 2}

	store := deposit.NewMemoryStore()
	notifier := &recordingNotifier{}
	pipeline := newTestPipeline(store, notifier)

	monitors := []config.MonitorConfig{{WalletAddress: wallet.Hex(), TokenAddress: token.Hex(), TokenDecimals: 6}}
	ei := NewEventIngestor("ETH", token.Hex(), client, nil, monitors, pipeline, zap.NewNop())

	ei.PollOnce(context.Background(), 500)

	found, err := store.FindByTxHash(common.HexToHash("0xTX").Hex())
	require.NoError(t, err)
	require.NotNil(t, found, "deposit should eventually be recorded after rate-limit retries")

	require.Len(t, client.sleeps, 2)
	assert.GreaterOrEqual(t, client.sleeps[0], 900*time.Millisecond)
	assert.GreaterOrEqual(t, client.sleeps[1], 1900*time.Millisecond)
}

func TestEventIngestor_PollOnce_AbortsTickOnNonRetryableError(t *testing.T) {
	token := common.HexToAddress(testToken)
	wallet := common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")

	request := rpcclient.NewMockRequestClient()
	request.SetLogs(nil, errors.New("connection refused"))

	store := deposit.NewMemoryStore()
	notifier := &recordingNotifier{}
	pipeline := newTestPipeline(store, notifier)

	monitors := []config.MonitorConfig{{WalletAddress: wallet.Hex(), TokenAddress: token.Hex(), TokenDecimals: 6}}
	ei := NewEventIngestor("ETH", token.Hex(), request, nil, monitors, pipeline, zap.NewNop())

	ei.PollOnce(context.Background(), 500)

	assert.Equal(t, 1, request.CallCount("FilterLogs"))
	assert.Equal(t, 0, notifier.newDepositCount())
}
