package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"token_analyst/config"
	"token_analyst/dispatcher"
	"token_analyst/generator"
	"token_analyst/ledger"
	"token_analyst/pipeline"
	"token_analyst/tools"
)

const (
	nebiusBaseURL = "https://api.studio.nebius.com/v1/"
	nebiusModel   = "openai/gpt-oss-120b"
)

func buildDispatcher(ctx context.Context) (*dispatcher.Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	llm, err := buildLLM(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	orch, err := pipeline.New(llm, buildTools(cfg.Tools), pipeline.Options{
		Timeout: cfg.Pipeline.Timeout,
		Network: cfg.Pipeline.Network,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	credits := ledger.NewClient(cfg.Ledger.BaseURL, &http.Client{Timeout: cfg.Ledger.Timeout}, logger)
	return dispatcher.New(credits, orch, dispatcher.Options{
		CreditsPerRequest: cfg.Pipeline.CreditsPerRequest,
		PaymentURL:        cfg.Payment.BaseURL,
		Network:           cfg.Pipeline.Network,
		Timeout:           cfg.Pipeline.Timeout,
		Logger:            logger,
	})
}

func buildLLM(ctx context.Context, lc config.LLMConfig) (generator.LLMClient, error) {
	settings := &generator.LLMSettings{
		Provider: lc.Provider,
		Model:    lc.Model,
		APIKey:   lc.APIKey,
		BaseURL:  lc.BaseURL,
	}
	switch lc.Provider {
	case "mock":
		logger.Warn("using mock llm; narratives are placeholders")
		return generator.MockLLM{}, nil
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "nebius":
		if settings.BaseURL == "" {
			settings.BaseURL = nebiusBaseURL
		}
		if settings.Model == "" {
			settings.Model = nebiusModel
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// OpenAI-compatible; base_url is the official or gateway endpoint.
		if settings.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "gemini":
		return generator.NewGeminiLLMFromConfig(ctx, settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", lc.Provider)
	}
}

// buildTools wires live sources where an endpoint is configured. Sources
// left nil are reported by the stages as unavailable.
func buildTools(tc config.ToolsConfig) tools.Set {
	if strings.ToLower(tc.Mode) != "live" {
		return tools.FixtureSet(nil)
	}
	client := &http.Client{Timeout: tc.Timeout}
	set := tools.Set{
		Prices:     tools.NewPythOracle(tc.PythBaseURL, client, logger),
		MarketCaps: tools.NewCoinGecko(tc.CoinGeckoBaseURL, tc.CoinGeckoPlatform, tc.CoinGeckoAPIKey, client),
	}
	if tc.SentimentURL != "" {
		set.Sentiment = tools.NewSocialFeed(tc.SentimentURL, client)
	} else {
		logger.Warn("sentiment_url not set; social sentiment disabled")
	}
	if tc.SubgraphURL != "" {
		set.Whales = tools.NewSubgraph(tc.SubgraphURL, tc.WhaleMinTransfer, client)
	} else {
		logger.Warn("subgraph_url not set; whale tracking disabled", zap.String("mode", tc.Mode))
	}
	return set
}
