package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

const validChainsYAML = `
chains:
  - chain_id: 8453
    rpc_url: https://mainnet.base.org
    bundler_url: https://bundler.example.com/base
  - chain_id: 10
    rpc_url: https://mainnet.optimism.io
markets:
  - name: Prime USDC Vault
    address: "0xbEEF010f9cb27031ad51e3333f9aF9C6B1228183"
    chainId: 8453
    asset: USDC
    protocol: morpho
  - name: USDC Reserve
    address: "0xA238Dd80C259a72e81d7e4664a9801593F98d1c5"
    chainId: 8453
    asset: USDC
    protocol: aave
`

func writeChainsFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("CHAINS_FILE", writeChainsFile(t, validChainsYAML))
	t.Setenv("SIGNER_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	t.Setenv("EXPORT_INTERVAL", "30s")
	t.Setenv("MAX_APY", "5.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ExportInterval)
	assert.InDelta(t, 5.5, cfg.MaxAPY, 1e-9)

	require.Len(t, cfg.File.Chains, 2)
	assert.Equal(t, uint64(chain.BaseID), cfg.File.Chains[0].ChainID)
	assert.Equal(t, "https://bundler.example.com/base", cfg.File.Chains[0].BundlerURL)
	assert.Empty(t, cfg.File.Chains[1].BundlerURL)

	require.Len(t, cfg.File.Markets, 2)
	assert.Equal(t, "USDC", cfg.File.Markets[0].Asset)
}

func TestLoadMissingChainsFile(t *testing.T) {
	t.Setenv("CHAINS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read chains file")
}

func TestLoadEmptyChains(t *testing.T) {
	t.Setenv("CHAINS_FILE", writeChainsFile(t, "chains: []\n"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configures no chains")
}

func TestLoadUnknownProtocol(t *testing.T) {
	t.Setenv("CHAINS_FILE", writeChainsFile(t, `
chains:
  - chain_id: 8453
    rpc_url: https://mainnet.base.org
markets:
  - name: Mystery Market
    address: "0x01"
    chainId: 8453
    asset: USDC
    protocol: compound
`))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown protocol "compound"`)
}

func TestMarketsFor(t *testing.T) {
	t.Setenv("CHAINS_FILE", writeChainsFile(t, validChainsYAML))
	cfg, err := Load()
	require.NoError(t, err)

	morpho := cfg.MarketsFor(types.ProtocolMorpho)
	require.Len(t, morpho, 1)
	assert.Equal(t, "Prime USDC Vault", morpho[0].Name)

	aave := cfg.MarketsFor(types.ProtocolAave)
	require.Len(t, aave, 1)
	assert.Equal(t, "USDC Reserve", aave[0].Name)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CFG_STR", "hello")
	assert.Equal(t, "hello", GetEnvOrDefault("CFG_STR", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("CFG_STR_ABSENT", "fallback"))

	t.Setenv("CFG_INT", "42")
	assert.Equal(t, 42, GetEnvAsInt("CFG_INT", 7))
	t.Setenv("CFG_INT", "not-a-number")
	assert.Equal(t, 7, GetEnvAsInt("CFG_INT", 7))

	t.Setenv("CFG_FLOAT", "2.5")
	assert.InDelta(t, 2.5, GetEnvAsFloat("CFG_FLOAT", 1.0), 1e-9)

	t.Setenv("CFG_DUR", "90s")
	assert.Equal(t, 90*time.Second, GetEnvAsDuration("CFG_DUR", time.Minute))
}
