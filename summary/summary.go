// Package summary turns a free-form analysis narrative into a compact
// structured summary and renders it for chat replies.
//
// Extraction is line-oriented keyword matching. It makes no model calls and
// never fails: the worst case is HOLD, MEDIUM and no findings.
package summary

import (
	"strings"
	"unicode/utf8"
)

type Recommendation string

const (
	Buy  Recommendation = "BUY"
	Sell Recommendation = "SELL"
	Hold Recommendation = "HOLD"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// DefaultRiskLevel is reported for every narrative; there is no risk extraction.
const DefaultRiskLevel = RiskMedium

// Keyword lexicons, matched as case-insensitive substrings.
var (
	BuyKeywords       = []string{"buy", "bullish", "positive"}
	SellKeywords      = []string{"sell", "bearish", "negative", "risk"}
	FindingKeywords   = []string{"bullish", "bearish", "risk", "recommendation", "buy", "sell", "hold"}
	KnownProjects     = []string{"divine", "redotpay", "uptop"}
	DiscoveryKeywords = append([]string{"token", "project"}, KnownProjects...)
)

const (
	MaxFindings    = 3
	MaxDiscoveries = 3
	// Line limits in runes; a line must be strictly shorter to qualify.
	FindingMaxLen   = 150
	DiscoveryMaxLen = 100
)

type Summary struct {
	Recommendation  Recommendation `json:"recommendation"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	KeyFindings     []string       `json:"key_findings"`
	DiscoveredItems []string       `json:"discovered_items"`
}

// Summarize extracts a Summary from narrative.
func Summarize(narrative string) Summary {
	lines := strings.Split(strings.ReplaceAll(narrative, "\r\n", "\n"), "\n")
	return Summary{
		Recommendation:  recommend(lines),
		RiskLevel:       DefaultRiskLevel,
		KeyFindings:     findings(lines),
		DiscoveredItems: discoveries(lines),
	}
}

// recommend returns the category of the first line matching either lexicon.
// A line matching both counts as BUY.
func recommend(lines []string) Recommendation {
	for _, line := range lines {
		l := strings.ToLower(line)
		if containsAny(l, BuyKeywords) {
			return Buy
		}
		if containsAny(l, SellKeywords) {
			return Sell
		}
	}
	return Hold
}

var emphasis = strings.NewReplacer("*", "", "#", "")

func findings(lines []string) []string {
	out := make([]string, 0, MaxFindings)
	for _, line := range lines {
		if len(out) == MaxFindings {
			break
		}
		t := strings.TrimSpace(line)
		if t == "" || utf8.RuneCountInString(t) >= FindingMaxLen || strings.HasPrefix(t, "|") {
			continue
		}
		if !containsAny(strings.ToLower(t), FindingKeywords) {
			continue
		}
		if t = strings.TrimSpace(emphasis.Replace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// discoveries takes the first MaxDiscoveries qualifying lines. Headings use
// up a slot but are not reported.
func discoveries(lines []string) []string {
	out := make([]string, 0, MaxDiscoveries)
	taken := 0
	for _, line := range lines {
		if taken == MaxDiscoveries {
			break
		}
		t := strings.TrimSpace(line)
		if t == "" || utf8.RuneCountInString(t) >= DiscoveryMaxLen || strings.Contains(t, "|") {
			continue
		}
		if !containsAny(strings.ToLower(t), DiscoveryKeywords) {
			continue
		}
		taken++
		if !strings.HasPrefix(t, "#") {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
