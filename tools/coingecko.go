package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// CoinGecko looks up market cap, volume and 24h change by contract address.
type CoinGecko struct {
	baseURL  string
	platform string
	apiKey   string
	client   *http.Client
}

// NewCoinGecko builds a lookup for contracts on platform (e.g. "ethereum").
// apiKey may be empty for the public tier.
func NewCoinGecko(baseURL, platform, apiKey string, client *http.Client) *CoinGecko {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if platform == "" {
		platform = "ethereum"
	}
	return &CoinGecko{
		baseURL:  strings.TrimRight(baseURL, "/"),
		platform: platform,
		apiKey:   apiKey,
		client:   defaultClient(client, 10*time.Second),
	}
}

func (c *CoinGecko) FetchMarketCap(ctx context.Context, tokenID string) (MarketSnapshot, error) {
	addr := strings.ToLower(strings.TrimSpace(tokenID))
	if addr == "" {
		return MarketSnapshot{}, errors.New("coingecko: empty token id")
	}

	q := url.Values{}
	q.Set("contract_addresses", addr)
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_vol", "true")
	q.Set("include_24hr_change", "true")
	endpoint := fmt.Sprintf("%s/simple/token_price/%s?%s", c.baseURL, url.PathEscape(c.platform), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return MarketSnapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	body, err := fetch(c.client, req, "coingecko")
	if err != nil {
		return MarketSnapshot{}, err
	}
	if !gjson.ValidBytes(body) {
		return MarketSnapshot{}, errors.New("coingecko: malformed response")
	}

	var entry gjson.Result
	gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
		if strings.EqualFold(key.String(), addr) {
			entry = value
			return false
		}
		return true
	})
	if !entry.Exists() || !entry.Get("usd").Exists() {
		return MarketSnapshot{}, fmt.Errorf("coingecko: %w for %s", ErrUnavailable, addr)
	}
	return MarketSnapshot{
		TokenID:      addr,
		PriceUSD:     entry.Get("usd").Float(),
		MarketCapUSD: entry.Get("usd_market_cap").Float(),
		Volume24hUSD: entry.Get("usd_24h_vol").Float(),
		Change24hPct: entry.Get("usd_24h_change").Float(),
	}, nil
}
