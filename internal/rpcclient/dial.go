package rpcclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// ethclientAdapter adapts *ethclient.Client's Close() (no error return)
// to the error-returning Close() our interfaces expect, matching the
// rest of this engine's Close contracts.
type ethclientAdapter struct {
	*ethclient.Client
}

func (a *ethclientAdapter) Close() error {
	a.Client.Close()
	return nil
}

// DialRequestClient connects the required request/response client
// (spec.md §6). httpURL must be non-empty; configuration validation in
// internal/config already enforces this.
func DialRequestClient(ctx context.Context, httpURL string) (RequestClient, error) {
	c, err := ethclient.DialContext(ctx, httpURL)
	if err != nil {
		return nil, fmt.Errorf("dial request client: %w", err)
	}
	return &ethclientAdapter{c}, nil
}

// DialStreamClient connects the optional streaming client. Callers
// treat a non-nil error as "streaming unavailable" and continue with
// the request client alone (spec.md §4.1, §7 "Streaming-connect
// failure").
func DialStreamClient(ctx context.Context, wsURL string) (StreamClient, error) {
	c, err := ethclient.DialContext(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("dial stream client: %w", err)
	}
	return &ethclientAdapter{c}, nil
}
