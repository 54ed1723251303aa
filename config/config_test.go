package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, 1, cfg.Pipeline.CreditsPerRequest)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "fixture", cfg.Tools.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("CREDITS_API_URL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Ledger.BaseURL, cfg.Ledger.BaseURL)
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("CREDITS_API_URL", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SUBGRAPH_URL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server_addr: ":9000"
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: sk-test
ledger:
  base_url: http://ledger:3001/api
pipeline:
  timeout: 45s
  network: Base
tools:
  mode: live
  whale_min_transfer: 250000
  subgraph_url: http://subgraph.local/graphql
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ServerAddr)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "http://ledger:3001/api", cfg.Ledger.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, "Base", cfg.Pipeline.Network)
	assert.Equal(t, 250000.0, cfg.Tools.WhaleMinTransfer)
	assert.Equal(t, "http://subgraph.local/graphql", cfg.Tools.SubgraphURL)
	assert.Equal(t, 1, cfg.Pipeline.CreditsPerRequest)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CREDITS_API_URL", "http://env-ledger/api")
	t.Setenv("LLM_PROVIDER", "nebius")
	t.Setenv("NEBIUS_API_KEY", "env-key")
	t.Setenv("COINGECKO_API_KEY", "cg-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://env-ledger/api", cfg.Ledger.BaseURL)
	assert.Equal(t, "nebius", cfg.LLM.Provider)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "cg-key", cfg.Tools.CoinGeckoAPIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "gemini"
	cfg.LLM.APIKey = ""
	cfg.Pipeline.CreditsPerRequest = 0
	cfg.Tools.Mode = "bogus"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, err.Error(), "credits_per_request")
	assert.Contains(t, err.Error(), "tools.mode")
}
