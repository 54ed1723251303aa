package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"token_analyst/sentiment"
)

// Fixture serves fixed, deterministic data for every tool. It backs local
// runs and tests; nothing leaves the process.
type Fixture struct {
	// Unavailable lists tools ("sentiment", "whales", "prices", "market_caps")
	// that should fail with ErrUnavailable.
	Unavailable []string
}

// FixtureSet wires the same Fixture into every slot of a Set.
func FixtureSet(f *Fixture) Set {
	if f == nil {
		f = &Fixture{}
	}
	return Set{Sentiment: f, Whales: f, Prices: f, MarketCaps: f}
}

func (f *Fixture) check(ctx context.Context, tool, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, u := range f.Unavailable {
		if u == tool {
			return fmt.Errorf("%s: %w for %s", tool, ErrUnavailable, topic)
		}
	}
	return nil
}

func (f *Fixture) FetchSentiment(ctx context.Context, topic string) ([]sentiment.Post, error) {
	if err := f.check(ctx, "sentiment", topic); err != nil {
		return nil, err
	}
	sym := "$" + shortTopic(topic)
	return []sentiment.Post{
		{AccountID: "user_a", Content: "So bullish on " + sym + "! To the moon!"},
		{AccountID: "user_b", Content: "I'm selling all my " + sym + ". This project is a scam."},
		{AccountID: "bot_1", Content: "Buy " + sym + " now! Guaranteed 100x! #crypto"},
		{AccountID: "bot_1", Content: "Don't miss out on " + sym + "! #altcoin"},
		{AccountID: "user_c", Content: "Just read the whitepaper for " + sym + ". Very impressive tech."},
		{AccountID: "bot_1", Content: sym + " is the future of finance! #DeFi"},
		{AccountID: "bot_1", Content: "Join the " + sym + " revolution!"},
		{AccountID: "user_d", Content: "Feeling uncertain about " + sym + "'s recent price action."},
	}, nil
}

func (f *Fixture) FetchWhaleActivity(ctx context.Context, contract string) (WhaleActivity, error) {
	if err := f.check(ctx, "whales", contract); err != nil {
		return WhaleActivity{}, err
	}
	ts := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	return WhaleActivity{
		Contract:    contract,
		TotalSupply: 1_000_000_000,
		Holders: []Holder{
			{Address: "0x1111111111111111111111111111111111111111", Balance: 62_000_000},
			{Address: "0x2222222222222222222222222222222222222222", Balance: 41_000_000},
			{Address: "0x3333333333333333333333333333333333333333", Balance: 23_000_000},
			{Address: "0x4444444444444444444444444444444444444444", Balance: 12_500_000},
			{Address: "0x5555555555555555555555555555555555555555", Balance: 9_000_000},
		},
		LargeTransfers: []Transfer{
			{
				From:      "0x1111111111111111111111111111111111111111",
				To:        "0x6666666666666666666666666666666666666666",
				Amount:    4_000_000,
				TxHash:    "0xfixture01",
				Timestamp: ts,
			},
			{
				From:      "0x7777777777777777777777777777777777777777",
				To:        "0x2222222222222222222222222222222222222222",
				Amount:    2_500_000,
				TxHash:    "0xfixture02",
				Timestamp: ts.Add(-3 * time.Hour),
			},
		},
	}, nil
}

func (f *Fixture) FetchPrice(ctx context.Context, tokenID string) (Price, error) {
	if err := f.check(ctx, "prices", tokenID); err != nil {
		return Price{}, err
	}
	return Price{
		Symbol:      shortTopic(tokenID) + "/USD",
		FeedID:      "fixture",
		Price:       0.4213,
		Confidence:  0.0009,
		PublishTime: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *Fixture) FetchMarketCap(ctx context.Context, tokenID string) (MarketSnapshot, error) {
	if err := f.check(ctx, "market_caps", tokenID); err != nil {
		return MarketSnapshot{}, err
	}
	return MarketSnapshot{
		TokenID:      tokenID,
		PriceUSD:     0.4213,
		MarketCapUSD: 186_400_000,
		Volume24hUSD: 12_750_000,
		Change24hPct: -3.4,
	}, nil
}

func shortTopic(topic string) string {
	t := strings.TrimSpace(topic)
	if len(t) > 8 {
		t = t[:8]
	}
	return strings.ToUpper(t)
}
