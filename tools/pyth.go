package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// PriceFeeds maps symbols to Pyth price feed ids.
var PriceFeeds = map[string]string{
	"BTC/USD":   "0xe62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
	"ETH/USD":   "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
	"SOL/USD":   "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d",
	"BNB/USD":   "0x2f95862b045670cd22bee3114c39763a4a08beeb663b145d283c31d7d1101c4f",
	"ADA/USD":   "0x2a01deaec9e51a579277b34b122399984d0bbf57e2458a7e42fecd2829867a0d",
	"AVAX/USD":  "0x93da3352f9f1d105fdfe4971cfa80e9dd777bfc5d0f683ebb6e1294b92137bb7",
	"MATIC/USD": "0x5de33a9112c2b700b8d30b8a3402c103578ccfa2765696471cc672bd5cf6ac52",
	"DOT/USD":   "0xca3eed9b267293f6595901c734c7525ce8ef49adafe8284606ceb307afa2ca5b",
	"UNI/USD":   "0x78d185a741d07edb3412b09008b7c5cfb9bbbd7d568bf00ba737b456ba171501",
	"LINK/USD":  "0x8ac0c70fff57e9aefdf5edf44b51d62c2d433653cbb2cf5cc06bb115af04d221",
	"AAVE/USD":  "0x2b9ab1e972a281585084148ba1389800799bd4be63b957507db82dc7c9c0e702",
	"CRV/USD":   "0xa19d04ac696c7a6616d291c7e5d1377cc8be437c327b75adb5dc1bad745fcae8",
	"USDC/USD":  "0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a",
	"USDT/USD":  "0x2b89b9dc8fdf9f34709a5b106b472f0f39bb6ca9ce04b0fd7f2e971688e2e53b",
	"DAI/USD":   "0xb0948a5e5313200c632b51bb5ca32f6de0d36e9950a942d19751e833f70dabfd",
}

// ContractSymbols maps well-known Ethereum mainnet token contracts, in lower
// case, to their Pyth symbols. Other contracts have no oracle feed.
var ContractSymbols = map[string]string{
	"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": "ETH/USD",   // WETH
	"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": "BTC/USD",   // WBTC
	"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": "USDC/USD",  // USDC
	"0xdac17f958d2ee523a2206206994597c13d831ec7": "USDT/USD",  // USDT
	"0x6b175474e89094c44da98b954eedeac495271d0f": "DAI/USD",   // DAI
	"0x514910771af9ca656af840dff83e8264ecf986ca": "LINK/USD",  // LINK
	"0x1f9840a85d5af5bf1d1762f925bdaddc4201f984": "UNI/USD",   // UNI
	"0x7fc66500c84a76ad7e9c93437bfc5ac33e2ddae9": "AAVE/USD",  // AAVE
	"0xd533a949740bb3306d119cc777fa900ba034cd52": "CRV/USD",   // CRV
	"0x7d1afa7b718fb893db30a3abc0cfc608aacfebb0": "MATIC/USD", // MATIC
}

var feedIDPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// PythOracle reads latest prices from a Pyth Hermes endpoint.
type PythOracle struct {
	baseURL    string
	client     *http.Client
	logger     *zap.Logger
	attempts   int
	retryDelay time.Duration
}

func NewPythOracle(baseURL string, client *http.Client, logger *zap.Logger) *PythOracle {
	if baseURL == "" {
		baseURL = "https://hermes.pyth.network"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PythOracle{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     defaultClient(client, 10*time.Second),
		logger:     logger,
		attempts:   3,
		retryDelay: time.Second,
	}
}

// ResolveFeed maps a symbol ("ETH", "ETH/USD"), a contract listed in
// ContractSymbols or a raw feed id to a feed id.
func ResolveFeed(tokenID string) (symbol, feedID string, err error) {
	id := strings.TrimSpace(tokenID)
	if feedIDPattern.MatchString(id) {
		return id, strings.ToLower(strings.TrimPrefix(id, "0x")), nil
	}
	sym := strings.ToUpper(id)
	if s, ok := ContractSymbols[strings.ToLower(id)]; ok {
		sym = s
	}
	if !strings.Contains(sym, "/") {
		sym += "/USD"
	}
	if feed, ok := PriceFeeds[sym]; ok {
		return sym, strings.TrimPrefix(feed, "0x"), nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnknownFeed, tokenID)
}

func (p *PythOracle) FetchPrice(ctx context.Context, tokenID string) (Price, error) {
	symbol, feedID, err := ResolveFeed(tokenID)
	if err != nil {
		return Price{}, err
	}

	q := url.Values{}
	q.Add("ids[]", feedID)
	q.Set("verbose", "true")
	q.Set("binary", "false")
	endpoint := p.baseURL + "/api/latest_price_feeds?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Price{}, ctx.Err()
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return Price{}, err
		}
		body, err := fetch(p.client, req, "pyth")
		if err == nil {
			return parsePythPrice(body, symbol, feedID)
		}
		lastErr = err
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			break
		}
		if ctx.Err() != nil {
			break
		}
		p.logger.Warn("pyth request failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return Price{}, lastErr
}

func parsePythPrice(body []byte, symbol, feedID string) (Price, error) {
	if !gjson.ValidBytes(body) {
		return Price{}, errors.New("pyth: malformed response")
	}
	for _, item := range gjson.ParseBytes(body).Array() {
		if !strings.EqualFold(strings.TrimPrefix(item.Get("id").String(), "0x"), feedID) {
			continue
		}
		raw := item.Get("price")
		if !raw.Exists() {
			break
		}
		scale := math.Pow10(int(raw.Get("expo").Int()))
		return Price{
			Symbol:      symbol,
			FeedID:      feedID,
			Price:       raw.Get("price").Float() * scale,
			Confidence:  raw.Get("conf").Float() * scale,
			PublishTime: time.Unix(raw.Get("publish_time").Int(), 0).UTC(),
		}, nil
	}
	return Price{}, fmt.Errorf("pyth: %w for %s", ErrUnavailable, symbol)
}
