package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole service configuration, read from a YAML file and
// overridden by environment variables.
type Config struct {
	ServerAddr string         `yaml:"server_addr"`
	LLM        LLMConfig      `yaml:"llm"`
	Ledger     LedgerConfig   `yaml:"ledger"`
	Pipeline   PipelineConfig `yaml:"pipeline"`
	Tools      ToolsConfig    `yaml:"tools"`
	Payment    PaymentConfig  `yaml:"payment"`
	Logging    LoggingConfig  `yaml:"logging"`
}

// LLMConfig selects the model shared by every stage.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// LedgerConfig covers both the ledger client and the bundled reference ledger service.
type LedgerConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	ServiceAddr string        `yaml:"service_addr"`
	DBPath      string        `yaml:"db_path"`
}

type PipelineConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	Network           string        `yaml:"network"`
	CreditsPerRequest int           `yaml:"credits_per_request"`
}

// ToolsConfig configures the data tools. Mode "fixture" uses deterministic
// in-process data, "live" talks to the configured endpoints.
type ToolsConfig struct {
	Mode              string        `yaml:"mode"`
	Timeout           time.Duration `yaml:"timeout"`
	PythBaseURL       string        `yaml:"pyth_base_url"`
	CoinGeckoBaseURL  string        `yaml:"coingecko_base_url"`
	CoinGeckoPlatform string        `yaml:"coingecko_platform"`
	CoinGeckoAPIKey   string        `yaml:"coingecko_api_key"`
	SubgraphURL       string        `yaml:"subgraph_url"`
	SentimentURL      string        `yaml:"sentiment_url"`
	// WhaleMinTransfer is the smallest transfer, in token units, reported as a whale move.
	WhaleMinTransfer float64 `yaml:"whale_min_transfer"`
}

type PaymentConfig struct {
	BaseURL string `yaml:"base_url"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ServerAddr: ":8080",
		LLM: LLMConfig{
			Provider: "mock",
		},
		Ledger: LedgerConfig{
			BaseURL:     "http://localhost:3001/api",
			Timeout:     10 * time.Second,
			ServiceAddr: ":3001",
			DBPath:      "credits.db",
		},
		Pipeline: PipelineConfig{
			Timeout:           60 * time.Second,
			Network:           "0G",
			CreditsPerRequest: 1,
		},
		Tools: ToolsConfig{
			Mode:              "fixture",
			Timeout:           10 * time.Second,
			PythBaseURL:       "https://hermes.pyth.network",
			CoinGeckoBaseURL:  "https://api.coingecko.com/api/v3",
			CoinGeckoPlatform: "ethereum",
			WhaleMinTransfer:  1_000_000,
		},
		Payment: PaymentConfig{
			BaseURL: "https://your-domain.com/payment",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of Default. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CREDITS_API_URL"); v != "" {
		c.Ledger.BaseURL = v
	}
	if v := os.Getenv("LEDGER_DB_PATH"); v != "" {
		c.Ledger.DBPath = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(apiKeyEnv(c.LLM.Provider))
	}
	if v := os.Getenv("PAYMENT_URL"); v != "" {
		c.Payment.BaseURL = v
	}
	if v := os.Getenv("SUBGRAPH_URL"); v != "" {
		c.Tools.SubgraphURL = v
	}
	if v := os.Getenv("SENTIMENT_URL"); v != "" {
		c.Tools.SentimentURL = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		c.Tools.CoinGeckoAPIKey = v
	}
}

func apiKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "nebius":
		return "NEBIUS_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	}
	return ""
}

// Validate reports configuration that cannot serve requests.
func (c *Config) Validate() error {
	var errs []error
	if c.Ledger.BaseURL == "" {
		errs = append(errs, errors.New("ledger.base_url is required"))
	}
	if c.Pipeline.Timeout <= 0 {
		errs = append(errs, errors.New("pipeline.timeout must be positive"))
	}
	if c.Pipeline.CreditsPerRequest < 1 {
		errs = append(errs, errors.New("pipeline.credits_per_request must be at least 1"))
	}
	switch c.LLM.Provider {
	case "mock":
	case "openai", "nebius", "deepseek", "gemini":
		if c.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm provider %s requires an api key (%s)", c.LLM.Provider, apiKeyEnv(c.LLM.Provider)))
		}
	default:
		errs = append(errs, fmt.Errorf("llm provider %q not supported", c.LLM.Provider))
	}
	switch strings.ToLower(c.Tools.Mode) {
	case "fixture", "live":
	default:
		errs = append(errs, fmt.Errorf("tools.mode %q must be fixture or live", c.Tools.Mode))
	}
	return errors.Join(errs...)
}
