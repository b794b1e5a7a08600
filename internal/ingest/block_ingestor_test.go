package ingest

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/config"
	"github.com/chainwatch/depositengine/internal/deposit"
	"github.com/chainwatch/depositengine/internal/rpcclient"
)

func nativeTransferBlock(t *testing.T, number uint64, to common.Address, value *big.Int) *types.Block {
	t.Helper()
	tx := types.NewTx(&types.LegacyTx{
		Nonce: 0,
		To:    &to,
		Value: value,
		Gas:   21000,
	})
	header := &types.Header{Number: new(big.Int).SetUint64(number)}
	return types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: []*types.Transaction{tx}})
}

func TestBlockIngestor_NativeDepositToMonitoredAddress(t *testing.T) {
	monitor := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	value := big.NewInt(1_000_000_000_000_000_000)

	request := rpcclient.NewMockRequestClient()
	block := nativeTransferBlock(t, 100, monitor, value)
	request.SetBlock(block)

	stream := rpcclient.NewMockStreamClient()
	store := deposit.NewMemoryStore()
	notifier := &recordingNotifier{}
	pipeline := newTestPipeline(store, notifier)

	monitors := []config.MonitorConfig{{WalletAddress: monitor.Hex()}}
	bi := NewBlockIngestor("ETH", request, stream, monitors, pipeline, zap.NewNop(), func(string, int) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bi.Run(ctx)

	time.Sleep(20 * time.Millisecond) // let Run install the subscription
	stream.PushHead(&types.Header{Number: big.NewInt(100)})
	time.Sleep(30 * time.Millisecond)

	found, err := store.FindByTxHash(block.Transactions()[0].Hash().Hex())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, deposit.AssetNative, found.Asset)
	assert.Equal(t, uint64(100), found.BlockNumber)
}

func TestBlockIngestor_NonMonitoredRecipientIsIgnored(t *testing.T) {
	other := common.HexToAddress("0xDEADBEEFDEADBEEFDEADBEEFDEADBEEFDEADBEEF")
	value := new(big.Int).SetUint64(10_000_000_000_000_000_000)

	request := rpcclient.NewMockRequestClient()
	block := nativeTransferBlock(t, 100, other, value)
	request.SetBlock(block)

	store := deposit.NewMemoryStore()
	notifier := &recordingNotifier{}
	pipeline := newTestPipeline(store, notifier)

	monitors := []config.MonitorConfig{{WalletAddress: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}}
	bi := NewBlockIngestor("ETH", request, nil, monitors, pipeline, zap.NewNop(), func(string, int) {})

	bi.handleHeader(context.Background(), &types.Header{Number: big.NewInt(100)})

	found, err := store.FindByTxHash(block.Transactions()[0].Hash().Hex())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestBlockIngestor_ZeroValueTransferIsIgnored(t *testing.T) {
	monitor := common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

	request := rpcclient.NewMockRequestClient()
	block := nativeTransferBlock(t, 100, monitor, big.NewInt(0))
	request.SetBlock(block)

	store := deposit.NewMemoryStore()
	notifier := &recordingNotifier{}
	pipeline := newTestPipeline(store, notifier)

	monitors := []config.MonitorConfig{{WalletAddress: monitor.Hex()}}
	bi := NewBlockIngestor("ETH", request, nil, monitors, pipeline, zap.NewNop(), func(string, int) {})

	bi.handleHeader(context.Background(), &types.Header{Number: big.NewInt(100)})

	found, err := store.FindByTxHash(block.Transactions()[0].Hash().Hex())
	require.NoError(t, err)
	assert.Nil(t, found)
}
