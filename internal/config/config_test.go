package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
chains:
  - name: "ETH"
    httpUrl: "https://example.invalid"
    monitor:
      - walletAddress: "0xAAA"
`)

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, cfg.Chains, 1)
	assert.Equal(t, DefaultRequiredConfirmations, cfg.Chains[0].RequiredConfirmations)
	assert.Equal(t, DefaultPollInterval, cfg.Confirmation.PollInterval)
	assert.Equal(t, DefaultWorkerPoolSize, cfg.Confirmation.WorkerPoolSize)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoad_DropsChainsMissingHTTPUrl(t *testing.T) {
	path := writeConfig(t, `
chains:
  - name: "ETH"
    monitor:
      - walletAddress: "0xAAA"
  - name: "BNB"
    httpUrl: "https://example.invalid"
`)

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, cfg.Chains, 1)
	assert.Equal(t, "BNB", cfg.Chains[0].Name)
}

func TestLoad_NoValidChainsIsAnError(t *testing.T) {
	path := writeConfig(t, `
chains:
  - name: "ETH"
`)

	_, err := Load(path, zap.NewNop())
	assert.Error(t, err)
}

func TestLoad_TokenMonitorMissingDecimalsDefaultsTo18(t *testing.T) {
	path := writeConfig(t, `
chains:
  - name: "ETH"
    httpUrl: "https://example.invalid"
    monitor:
      - walletAddress: "0xAAA"
        tokenAddress: "0xCCC"
`)

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, cfg.Chains[0].Monitor, 1)
	assert.Equal(t, 18, cfg.Chains[0].Monitor[0].TokenDecimals)
}
