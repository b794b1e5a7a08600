package rpcclient

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// MockRequestClient is an in-memory RequestClient for tests, following
// the teacher's MockRPCClient shape (configurable responses/errors,
// mutex-guarded state).
type MockRequestClient struct {
	mu sync.Mutex

	head      uint64
	headErr   error
	blocks    map[uint64]*types.Block
	logs      []types.Log
	logsErr   error
	callCount map[string]int
}

// NewMockRequestClient creates an empty mock request client.
func NewMockRequestClient() *MockRequestClient {
	return &MockRequestClient{
		blocks:    make(map[uint64]*types.Block),
		callCount: make(map[string]int),
	}
}

// SetHead sets the value BlockNumber returns.
func (m *MockRequestClient) SetHead(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = n
}

// SetHeadError makes BlockNumber fail with err.
func (m *MockRequestClient) SetHeadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headErr = err
}

// SetBlock registers a block to be returned by BlockByNumber.
func (m *MockRequestClient) SetBlock(b *types.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[b.NumberU64()] = b
}

// SetLogs configures the logs returned by every FilterLogs call.
func (m *MockRequestClient) SetLogs(logs []types.Log, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = logs
	m.logsErr = err
}

// CallCount returns how many times method was invoked.
func (m *MockRequestClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[method]
}

func (m *MockRequestClient) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount["BlockNumber"]++
	if m.headErr != nil {
		return 0, m.headErr
	}
	return m.head, nil
}

func (m *MockRequestClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount["BlockByNumber"]++
	b, ok := m.blocks[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return b, nil
}

func (m *MockRequestClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount["FilterLogs"]++
	if m.logsErr != nil {
		return nil, m.logsErr
	}
	return m.logs, nil
}

func (m *MockRequestClient) Close() error { return nil }

// MockStreamClient is a StreamClient whose Subscribe* methods deliver
// whatever is passed to PushHead/PushLog to every subscriber.
type MockStreamClient struct {
	mu       sync.Mutex
	headSubs []chan<- *types.Header
	logSubs  []chan<- types.Log
	closed   bool
}

// NewMockStreamClient creates an empty mock stream client.
func NewMockStreamClient() *MockStreamClient {
	return &MockStreamClient{}
}

func (m *MockStreamClient) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headSubs = append(m.headSubs, ch)
	return newMockSubscription(), nil
}

func (m *MockStreamClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logSubs = append(m.logSubs, ch)
	return newMockSubscription(), nil
}

// PushHead delivers header to every head subscriber.
func (m *MockStreamClient) PushHead(header *types.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.headSubs {
		ch <- header
	}
}

// PushLog delivers log to every log subscriber.
func (m *MockStreamClient) PushLog(log types.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.logSubs {
		ch <- log
	}
}

func (m *MockStreamClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type mockSubscription struct {
	errCh chan error
}

func newMockSubscription() *mockSubscription {
	return &mockSubscription{errCh: make(chan error, 1)}
}

func (s *mockSubscription) Unsubscribe() {}
func (s *mockSubscription) Err() <-chan error { return s.errCh }

var (
	_ RequestClient = (*MockRequestClient)(nil)
	_ StreamClient  = (*MockStreamClient)(nil)
)
