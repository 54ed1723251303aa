package summary

import (
	"fmt"
	"strings"
)

func (r Recommendation) glyph() string {
	switch r {
	case Buy:
		return "🟢"
	case Sell:
		return "🔴"
	}
	return "🟡"
}

// FormatTokenAnalysis renders the reply for a full token analysis.
func FormatTokenAnalysis(sum Summary, topic string, narrativeLen int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **Token Analysis: %s**\n\n", abbreviate(topic, 10))
	b.WriteString("📊 **Quick Stats:**\n")
	fmt.Fprintf(&b, "• Address: `%s`\n", topic)
	b.WriteString("• Status: Analysis Complete ✅\n\n")
	fmt.Fprintf(&b, "📈 **Recommendation:** %s %s\n", sum.Recommendation, sum.Recommendation.glyph())
	fmt.Fprintf(&b, "⚠️ **Risk Assessment:** %s\n\n", sum.RiskLevel)

	b.WriteString("🔑 **Key Findings:**\n")
	writeBullets(&b, sum.KeyFindings, "On-chain, whale and sentiment analysis completed")

	fmt.Fprintf(&b, "\n🤖 %d chars analyzed\n", narrativeLen)
	b.WriteString("💡 **Note:** This is a preliminary analysis, not financial advice\n")
	b.WriteString("📊 Use /discover for market opportunities")
	return b.String()
}

// FormatDiscovery renders the reply for a discovery-only run.
func FormatDiscovery(sum Summary, narrativeLen int) string {
	var b strings.Builder
	b.WriteString("🔍 **Discovery Summary**\n\n")
	if len(sum.DiscoveredItems) > 0 {
		b.WriteString("📊 **Top Discoveries:**\n")
		for i, item := range sum.DiscoveredItems {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
		b.WriteString("\n")
	}
	b.WriteString("💡 **Key Insights:**\n")
	writeBullets(&b, sum.KeyFindings, "No decisive signals found")

	fmt.Fprintf(&b, "\n🤖 Analysis completed • %d chars processed\n", narrativeLen)
	b.WriteString("💬 Use /analyze <token> for specific token analysis")
	return b.String()
}

// FormatNetworkIntel renders the reply for a network-scoped analysis.
func FormatNetworkIntel(sum Summary, topic, network string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **%s Network Intelligence**\n\n", network)
	fmt.Fprintf(&b, "📡 **Token:** `%s`\n", abbreviate(topic, 15))
	fmt.Fprintf(&b, "🌐 **Network:** %s\n\n", network)
	fmt.Fprintf(&b, "📈 **Recommendation:** %s %s\n", sum.Recommendation, sum.Recommendation.glyph())
	fmt.Fprintf(&b, "⚠️ **Risk Assessment:** %s\n\n", sum.RiskLevel)

	fmt.Fprintf(&b, "⚡ **%s-Specific Findings:**\n", network)
	writeBullets(&b, sum.KeyFindings, fmt.Sprintf("%s-native analysis complete", network))

	b.WriteString("\n📈 Use /analyze for detailed token metrics")
	return b.String()
}

func writeBullets(b *strings.Builder, items []string, fallback string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "• %s\n", fallback)
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "• %s\n", it)
	}
}

func abbreviate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
