package dispatcher

import (
	"fmt"
	"net/url"
	"strings"

	"token_analyst/ledger"
	"token_analyst/pipeline"
)

// Command names accepted by Handle. A leading "/" is ignored.
const (
	CmdAnalyze      = "analyze"
	CmdDiscover     = "discover"
	CmdNetworkIntel = "network_intel"
	CmdCredits      = "credits"
	CmdHelp         = "help"
	CmdStart        = "start"
)

// DefaultDiscoveryBrief is the topic of a discover run.
const DefaultDiscoveryBrief = "Discover and analyze the top 5 most promising newly funded utility tokens from the past 30 days. " +
	"Focus on projects with strong utility, reasonable valuations, and favorable vesting schedules."

var aliases = map[string]string{
	"og_intel": CmdNetworkIntel,
}

// paidCommand describes a credit-gated command.
type paidCommand struct {
	mode        pipeline.Mode
	needsTopic  bool
	usage       string
	failureVerb string
}

var paid = map[string]paidCommand{
	CmdAnalyze: {
		mode:        pipeline.ModeFull,
		needsTopic:  true,
		usage:       "Please provide a token address: `/analyze <token_address>`",
		failureVerb: "Analysis",
	},
	CmdDiscover: {
		mode:        pipeline.ModeDiscoveryOnly,
		failureVerb: "Discovery",
	},
	CmdNetworkIntel: {
		mode:        pipeline.ModeNetworkSpecific,
		needsTopic:  true,
		usage:       "Please provide a token address: `/network_intel <token_address>`",
		failureVerb: "Network intel",
	},
}

func normalizeCommand(cmd string) string {
	cmd = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd), "/"))
	if alias, ok := aliases[cmd]; ok {
		return alias
	}
	return cmd
}

// PaymentOption is one purchase tier offered as a link.
type PaymentOption struct {
	Label   string `json:"label"`
	Credits int    `json:"credits"`
	Price   string `json:"price"`
	URL     string `json:"url"`
}

// paymentOptions links every tier for userID. The smallest tier is the
// payment page's default and carries no package parameter.
func paymentOptions(base, userID string) []PaymentOption {
	out := make([]PaymentOption, 0, len(ledger.Packages))
	for i, p := range ledger.Packages {
		link := fmt.Sprintf("%s?userId=%s", base, url.QueryEscape(userID))
		if i > 0 {
			link += fmt.Sprintf("&package=%d", p.Credits)
		}
		price := p.PriceInOG + " 0G"
		out = append(out, PaymentOption{
			Label:   fmt.Sprintf("💎 %d Credits - %s", p.Credits, price),
			Credits: p.Credits,
			Price:   price,
			URL:     link,
		})
	}
	return out
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func (d *Dispatcher) helpText() string {
	cost := plural(d.opts.CreditsPerRequest, "credit")
	var b strings.Builder
	b.WriteString("🤖 **Crypto Intelligence Assistant**\n\n")
	b.WriteString("**Commands:**\n")
	fmt.Fprintf(&b, "• `/analyze <token_address>` - Comprehensive token analysis (%s)\n", cost)
	fmt.Fprintf(&b, "• `/discover` - Find new funded opportunities (%s)\n", cost)
	fmt.Fprintf(&b, "• `/network_intel <token_address>` - %s network specific analysis (%s)\n", d.opts.Network, cost)
	b.WriteString("• `/credits` - Check your credit balance and buy more\n")
	b.WriteString("• `/help` - Show this help message\n\n")
	b.WriteString("**Features:**\n")
	b.WriteString("🔍 Token discovery with bot-filtered social sentiment\n")
	b.WriteString("🐋 Whale tracking and concentration risk\n")
	b.WriteString("📊 Live oracle prices and market data\n")
	b.WriteString("💡 Investment recommendations\n\n")
	b.WriteString("**Credits:**\n")
	fmt.Fprintf(&b, "Each analysis costs %s. Purchase credit packages with /credits.", cost)
	return b.String()
}

func (d *Dispatcher) creditsText(balance int) string {
	cost := plural(d.opts.CreditsPerRequest, "credit")
	var b strings.Builder
	b.WriteString("💰 **Your Credits**\n\n")
	fmt.Fprintf(&b, "🪙 Balance: %s\n\n", plural(balance, "credit"))
	b.WriteString("💡 **Usage:**\n")
	fmt.Fprintf(&b, "• Token Analysis: %s\n", cost)
	fmt.Fprintf(&b, "• Discovery Search: %s\n", cost)
	fmt.Fprintf(&b, "• %s Intel: %s\n\n", d.opts.Network, cost)
	b.WriteString("🛒 **Buy More Credits:**")
	return b.String()
}

func insufficientText(balance, required int) string {
	return fmt.Sprintf("❌ Insufficient credits!\n\n💰 Your balance: %s\n💡 Required: %s\n\nPurchase credits to unlock premium analysis:",
		plural(balance, "credit"), plural(required, "credit"))
}
