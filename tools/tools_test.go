package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_analyst/sentiment"
)

func TestConcentrationRisk(t *testing.T) {
	_, ok := WhaleActivity{}.ConcentrationRisk()
	assert.False(t, ok)

	w := WhaleActivity{TotalSupply: 1000}
	for i := 0; i < 12; i++ {
		w.Holders = append(w.Holders, Holder{Balance: float64(i + 1)})
	}
	risk, ok := w.ConcentrationRisk()
	require.True(t, ok)
	// top ten of 1..12 are 3..12 = 75
	assert.InDelta(t, 0.075, risk, 1e-9)

	w = WhaleActivity{TotalSupply: 10, Holders: []Holder{{Balance: 50}}}
	risk, _ = w.ConcentrationRisk()
	assert.Equal(t, 1.0, risk)
}

func TestFixture(t *testing.T) {
	ctx := context.Background()
	f := &Fixture{}

	posts, err := f.FetchSentiment(ctx, "0xdeadbeefcafe")
	require.NoError(t, err)
	res := sentiment.Filter(posts)
	assert.Equal(t, []string{"bot_1"}, res.DetectedBots)
	assert.Equal(t, 4, res.TotalAuthenticPosts)
	assert.Equal(t, sentiment.Bearish, res.AuthenticSentiment)

	w, err := f.FetchWhaleActivity(ctx, "0xdead")
	require.NoError(t, err)
	risk, ok := w.ConcentrationRisk()
	require.True(t, ok)
	assert.InDelta(t, 0.1475, risk, 1e-9)

	f.Unavailable = []string{"prices"}
	_, err = f.FetchPrice(ctx, "0xdead")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = f.FetchMarketCap(ctx, "0xdead")
	assert.NoError(t, err)
}

func TestResolveFeed(t *testing.T) {
	sym, feed, err := ResolveFeed("eth")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USD", sym)
	assert.Equal(t, "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace", feed)

	raw := "0xE62DF6C8B4A85FE1A67DB44DC12DE5DB330F7AC66B72DC658AFEDF0F4A415B43"
	_, feed, err = ResolveFeed(raw)
	require.NoError(t, err)
	assert.Equal(t, "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43", feed)

	_, _, err = ResolveFeed("0x5FaADBd9203Bc599B71bb789BD59ca9127a87caC")
	assert.ErrorIs(t, err, ErrUnknownFeed)

	// checksummed WETH address resolves to the ETH feed
	sym, feed, err = ResolveFeed("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.NoError(t, err)
	assert.Equal(t, "ETH/USD", sym)
	assert.Equal(t, "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace", feed)

	sym, _, err = ResolveFeed("0x2260fac5e5542a773aa44fbcfedf7c193bc2c599")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", sym)

	for contract, symbol := range ContractSymbols {
		assert.Equal(t, strings.ToLower(contract), contract)
		assert.Contains(t, PriceFeeds, symbol)
	}
}

func TestPythOracle_FetchPrice(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/latest_price_feeds", r.URL.Path)
		assert.Equal(t, "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace", r.URL.Query().Get("ids[]"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
			"price":{"price":"250012345678","conf":"150000000","expo":-8,"publish_time":1700000000}}]`))
	}))
	defer srv.Close()

	p := NewPythOracle(srv.URL, nil, nil)
	p.retryDelay = time.Millisecond

	price, err := p.FetchPrice(context.Background(), "ETH/USD")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "ETH/USD", price.Symbol)
	assert.InDelta(t, 2500.12345678, price.Price, 1e-6)
	assert.InDelta(t, 1.5, price.Confidence, 1e-9)
	assert.Equal(t, int64(1700000000), price.PublishTime.Unix())
}

func TestPythOracle_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewPythOracle(srv.URL, nil, nil)
	p.retryDelay = time.Millisecond
	_, err := p.FetchPrice(context.Background(), "BTC")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoinGecko_FetchMarketCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/token_price/ethereum", r.URL.Path)
		if r.URL.Query().Get("contract_addresses") != "0xabc" {
			// unlisted contracts come back as an empty object
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"0xabc":{"usd":0.5,"usd_market_cap":1200000,"usd_24h_vol":34000,"usd_24h_change":2.5}}`))
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "", "", nil)
	snap, err := cg.FetchMarketCap(context.Background(), "0xABC")
	require.NoError(t, err)
	assert.Equal(t, MarketSnapshot{TokenID: "0xabc", PriceUSD: 0.5, MarketCapUSD: 1200000, Volume24hUSD: 34000, Change24hPct: 2.5}, snap)

	_, err = cg.FetchMarketCap(context.Background(), "0xother")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSubgraph_FetchWhaleActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"data":{
			"token":{"totalSupply":"1000"},
			"holders":[{"account":{"id":"0xa"},"amount":"300"},{"account":{"id":"0xb"},"amount":"100"}],
			"transfers":[{"from":"0xa","to":"0xc","amount":"250","timestamp":"1700000000","transaction":"0xt"}]
		}}`))
	}))
	defer srv.Close()

	w, err := NewSubgraph(srv.URL, 0, nil).FetchWhaleActivity(context.Background(), "0xTOKEN")
	require.NoError(t, err)
	assert.Equal(t, "0xtoken", w.Contract)
	require.Len(t, w.Holders, 2)
	require.Len(t, w.LargeTransfers, 1)
	assert.Equal(t, "0xt", w.LargeTransfers[0].TxHash)
	risk, ok := w.ConcentrationRisk()
	require.True(t, ok)
	assert.InDelta(t, 0.4, risk, 1e-9)

	_, err = parseWhaleActivity([]byte(`{"errors":[{"message":"bad query"}]}`), "0x")
	assert.EqualError(t, err, "subgraph: bad query")

	_, err = parseWhaleActivity([]byte(`{"data":{"token":null}}`), "0x")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewSubgraph("", 0, nil).FetchWhaleActivity(context.Background(), "0x")
	assert.Error(t, err)
}

func TestSocialFeed_FetchSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0xabc", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"posts":[{"account_id":"a","content":"bullish"},{"account_id":"b","content":"scam"}]}`))
	}))
	defer srv.Close()

	posts, err := NewSocialFeed(srv.URL+"/search", nil).FetchSentiment(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []sentiment.Post{{AccountID: "a", Content: "bullish"}, {AccountID: "b", Content: "scam"}}, posts)
}
