// Package tools defines the external data capabilities the analysis stages
// query, with live HTTP integrations and deterministic fixtures.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"token_analyst/sentiment"
)

var (
	// ErrUnavailable means the source answered but had nothing for the token.
	ErrUnavailable = errors.New("data unavailable")
	// ErrUnknownFeed means no price feed is known for the token.
	ErrUnknownFeed = errors.New("unknown price feed")
)

type SentimentSource interface {
	FetchSentiment(ctx context.Context, topic string) ([]sentiment.Post, error)
}

type WhaleSource interface {
	FetchWhaleActivity(ctx context.Context, contract string) (WhaleActivity, error)
}

type PriceOracle interface {
	FetchPrice(ctx context.Context, tokenID string) (Price, error)
}

type MarketCapSource interface {
	FetchMarketCap(ctx context.Context, tokenID string) (MarketSnapshot, error)
}

// Set is the bundle of tools handed to the pipeline. Any member may be nil,
// in which case the stage reports that source as unavailable.
type Set struct {
	Sentiment  SentimentSource
	Whales     WhaleSource
	Prices     PriceOracle
	MarketCaps MarketCapSource
}

type Price struct {
	Symbol      string    `json:"symbol"`
	FeedID      string    `json:"feed_id"`
	Price       float64   `json:"price"`
	Confidence  float64   `json:"confidence_interval"`
	PublishTime time.Time `json:"publish_time"`
}

type MarketSnapshot struct {
	TokenID      string  `json:"token_id"`
	PriceUSD     float64 `json:"price_usd"`
	MarketCapUSD float64 `json:"market_cap_usd"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
	Change24hPct float64 `json:"change_24h_pct"`
}

type Holder struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
}

type Transfer struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    float64   `json:"amount"`
	TxHash    string    `json:"tx_hash"`
	Timestamp time.Time `json:"timestamp"`
}

// WhaleActivity is the holder distribution and recent large transfers of a token.
type WhaleActivity struct {
	Contract       string     `json:"contract"`
	TotalSupply    float64    `json:"total_supply"`
	Holders        []Holder   `json:"holders"`
	LargeTransfers []Transfer `json:"large_transfers"`
}

// TopHolders is how many of the largest holders count toward concentration.
const TopHolders = 10

// ConcentrationRisk returns the share of total supply (0..1) held by the
// TopHolders largest holders. ok is false when supply is unknown.
func (w WhaleActivity) ConcentrationRisk() (risk float64, ok bool) {
	if w.TotalSupply <= 0 {
		return 0, false
	}
	balances := make([]float64, 0, len(w.Holders))
	for _, h := range w.Holders {
		balances = append(balances, h.Balance)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(balances)))
	if len(balances) > TopHolders {
		balances = balances[:TopHolders]
	}
	var held float64
	for _, b := range balances {
		held += b
	}
	risk = held / w.TotalSupply
	if risk > 1 {
		risk = 1
	}
	return risk, true
}

// StatusError is a non-2xx answer from a data source.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Source, e.Code, e.Body)
}

func fetch(client *http.Client, req *http.Request, source string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", source, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Source: source, Code: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

func defaultClient(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
