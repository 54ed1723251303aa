// Package sentiment separates bot noise from authentic social posts and
// tallies the sentiment of what remains.
package sentiment

import (
	"sort"
	"strings"
)

// BotThreshold is the number of posts an account may make before every one
// of its posts is discarded as bot activity.
const BotThreshold = 3

var (
	BullishTerms = []string{"bullish", "impressive"}
	BearishTerms = []string{"scam", "uncertain"}
)

type Label string

const (
	Bullish Label = "Bullish"
	Bearish Label = "Bearish"
)

// Post is one social message attributed to an account.
type Post struct {
	AccountID string `json:"account_id"`
	Content   string `json:"content"`
}

type Result struct {
	AuthenticSentiment  Label    `json:"authentic_sentiment"`
	BullishPosts        int      `json:"bullish_posts"`
	BearishPosts        int      `json:"bearish_posts"`
	TotalAuthenticPosts int      `json:"total_authentic_posts"`
	DetectedBots        []string `json:"detected_bots"`
}

// Filter drops every post from accounts posting more than BotThreshold times
// and classifies the rest against the bullish and bearish lexicons. Ties,
// including the empty input, resolve to Bearish.
func Filter(posts []Post) Result {
	counts := make(map[string]int, len(posts))
	for _, p := range posts {
		counts[p.AccountID]++
	}

	res := Result{DetectedBots: []string{}}
	for account, n := range counts {
		if n > BotThreshold {
			res.DetectedBots = append(res.DetectedBots, account)
		}
	}
	sort.Strings(res.DetectedBots)

	for _, p := range posts {
		if counts[p.AccountID] > BotThreshold {
			continue
		}
		res.TotalAuthenticPosts++
		if containsAny(p.Content, BullishTerms) {
			res.BullishPosts++
		}
		if containsAny(p.Content, BearishTerms) {
			res.BearishPosts++
		}
	}

	res.AuthenticSentiment = Bearish
	if res.BullishPosts > res.BearishPosts {
		res.AuthenticSentiment = Bullish
	}
	return res
}

// IsBot reports whether account was classified as a bot in r.
func (r Result) IsBot(account string) bool {
	i := sort.SearchStrings(r.DetectedBots, account)
	return i < len(r.DetectedBots) && r.DetectedBots[i] == account
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
