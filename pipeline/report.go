package pipeline

import (
	"time"

	"token_analyst/sentiment"
	"token_analyst/tools"
)

type Role string

const (
	RoleDiscovery Role = "discovery"
	RoleWhale     Role = "whale"
	RoleMarket    Role = "market"
	RoleFinancial Role = "financial"
)

// FullSequence is the fixed stage order of a full analysis.
var FullSequence = []Role{RoleDiscovery, RoleWhale, RoleMarket, RoleFinancial}

type Mode int

const (
	ModeFull Mode = iota
	ModeDiscoveryOnly
	ModeNetworkSpecific
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeDiscoveryOnly:
		return "discovery_only"
	case ModeNetworkSpecific:
		return "network_specific"
	}
	return "unknown"
}

// StageReport is what one stage produced. Structured fields let later stages
// read figures without mining the narrative; each is nil when the stage did
// not obtain it.
type StageReport struct {
	Role      Role   `json:"role"`
	Narrative string `json:"narrative"`

	Sentiment         *sentiment.Result     `json:"sentiment,omitempty"`
	ConcentrationRisk *float64              `json:"concentration_risk,omitempty"`
	Market            *tools.MarketSnapshot `json:"market,omitempty"`
	Price             *tools.Price          `json:"price,omitempty"`
	Strategy          string                `json:"strategy,omitempty"`
	ToolErrors        []string              `json:"tool_errors,omitempty"`
}

// Result is one completed pipeline run.
type Result struct {
	Topic     string        `json:"topic"`
	Mode      Mode          `json:"mode"`
	Narrative string        `json:"narrative"`
	Reports   []StageReport `json:"reports"`
	Elapsed   time.Duration `json:"elapsed"`
}

// find returns the latest report for role.
func find(reports []StageReport, role Role) (StageReport, bool) {
	for i := len(reports) - 1; i >= 0; i-- {
		if reports[i].Role == role {
			return reports[i], true
		}
	}
	return StageReport{}, false
}
