package pipeline

import "fmt"

// Definition is the instruction set of one stage role.
type Definition struct {
	Name           string
	Description    string
	Instructions   []string
	ExpectedOutput string
}

// Definitions holds the instruction set for every role.
var Definitions = map[Role]Definition{
	RoleDiscovery: {
		Name:        "Token Discovery & Intelligence Agent",
		Description: "An elite crypto market researcher specializing in token discovery, funding round analysis, and early-stage project evaluation.",
		Instructions: []string{
			"Characterize the token: utility, tokenomics, investors and vesting where the data shows them.",
			"Assess the token's utility and competitive landscape based on the available data.",
			"Use the authentic social sentiment figures to gauge community conviction; bot accounts are already excluded.",
			"Report strictly what the sources yielded. If a source is unavailable, say so and do not estimate it.",
		},
		ExpectedOutput: "A report on the token with its investment potential and social sentiment.",
	},
	RoleWhale: {
		Name:        "Whale Tracking & Behavior Analysis Agent",
		Description: "A specialized on-chain analyst with expertise in whale wallet identification and large transaction monitoring.",
		Instructions: []string{
			"Identify the largest holder wallets for the token.",
			"Report recent large transfers and what they suggest about accumulation or distribution.",
			"State the concentration risk figure and what it implies for potential market manipulation.",
		},
		ExpectedOutput: "An intelligence report on whale activity, concentration risk, and potential market movements.",
	},
	RoleMarket: {
		Name:        "Live Market Data & Technical Analysis Agent",
		Description: "A quantitative market analyst specializing in real-time price tracking and market capitalization analysis.",
		Instructions: []string{
			"Deliver the live token price and market capitalization.",
			"Analyze trading volume and liquidity depth.",
			"Comment on technical posture (momentum, RSI/MACD-style signals) only as far as the data allows.",
			"Assess market sentiment from price action.",
		},
		ExpectedOutput: "A market intelligence brief with key metrics and technical analysis.",
	},
	RoleFinancial: {
		Name:        "Financial Analysis & Investment Decision Agent",
		Description: "A senior crypto financial analyst with expertise in investment thesis development and risk modeling.",
		Instructions: []string{
			"Synthesize every earlier stage's findings into one investment recommendation.",
			"Analyze fundamental valuation and risk-adjusted return prospects.",
			"Apply the strategic read of whale concentration against authentic sentiment.",
			"Provide portfolio allocation guidance and scenario analysis.",
			"Formulate a clear thesis with risk management strategies.",
		},
		ExpectedOutput: "A professional investment report with a clear BUY/SELL/HOLD recommendation, detailed financial analysis, and strategic market insights.",
	},
}

// networkScope re-targets a role's instructions at a named sub-network.
func networkScope(network string) string {
	return fmt.Sprintf("Scope every finding to the %s network: %s-specific metrics, validator activity, and network-specific whale patterns.", network, network)
}
