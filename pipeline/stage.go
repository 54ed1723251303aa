package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token_analyst/generator"
	"token_analyst/sentiment"
	"token_analyst/tools"
)

// Stage is one specialist unit of the pipeline.
type Stage struct {
	Role       Role
	Definition Definition
	// Scope is an extra instruction appended for network-specific runs.
	Scope string

	agent  *generator.Agent
	tools  tools.Set
	logger *zap.Logger
}

// NewStage builds the stage for role from Definitions.
func NewStage(role Role, agent *generator.Agent, set tools.Set, logger *zap.Logger) (Stage, error) {
	def, ok := Definitions[role]
	if !ok {
		return Stage{}, fmt.Errorf("unknown stage role %q", role)
	}
	if agent == nil {
		return Stage{}, fmt.Errorf("%s stage: agent is required", role)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Stage{Role: role, Definition: def, agent: agent, tools: set, logger: logger.With(zap.String("stage", string(role)))}, nil
}

// WithScope returns a copy of s re-scoped by an extra instruction.
func (s Stage) WithScope(scope string) Stage {
	s.Scope = scope
	return s
}

// toolData collects fact lines for the prompt. Failed tools are recorded on
// the report and stated as unavailable; they never fail the stage.
type toolData struct {
	mu     sync.Mutex
	lines  []string
	report *StageReport
}

func (d *toolData) add(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, "- "+fmt.Sprintf(format, args...))
}

func (d *toolData) fail(source string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, fmt.Sprintf("- unavailable: %s (%v)", source, err))
	d.report.ToolErrors = append(d.report.ToolErrors, fmt.Sprintf("%s: %v", source, err))
}

// Run gathers the stage's tool data, reads prior reports and asks the model
// for the stage narrative. prior is never modified.
func (s Stage) Run(ctx context.Context, topic string, prior []StageReport) (StageReport, error) {
	report := StageReport{Role: s.Role}
	data := &toolData{report: &report}

	switch s.Role {
	case RoleDiscovery:
		s.discover(ctx, topic, data)
	case RoleWhale:
		s.trackWhales(ctx, topic, data)
	case RoleMarket:
		s.readMarket(ctx, topic, data)
	case RoleFinancial:
		s.synthesize(prior, data)
	}
	for _, e := range report.ToolErrors {
		s.logger.Warn("tool degraded", zap.String("topic", topic), zap.String("error", e))
	}

	narrative, err := s.agent.Generate(ctx, s.prompt(topic, data.lines, prior, report.Strategy))
	if err != nil {
		return StageReport{}, err
	}
	report.Narrative = narrative
	return report, nil
}

func (s Stage) discover(ctx context.Context, topic string, data *toolData) {
	if src := s.tools.Sentiment; src == nil {
		data.fail("social sentiment", tools.ErrUnavailable)
	} else if posts, err := src.FetchSentiment(ctx, topic); err != nil {
		data.fail("social sentiment", err)
	} else {
		res := sentiment.Filter(posts)
		data.report.Sentiment = &res
		data.add("authentic social sentiment: %s (%d bullish / %d bearish across %d authentic posts)",
			res.AuthenticSentiment, res.BullishPosts, res.BearishPosts, res.TotalAuthenticPosts)
		if len(res.DetectedBots) > 0 {
			data.add("bot accounts excluded: %s", strings.Join(res.DetectedBots, ", "))
		}
	}

	if src := s.tools.MarketCaps; src == nil {
		data.fail("market capitalization", tools.ErrUnavailable)
	} else if snap, err := src.FetchMarketCap(ctx, topic); err != nil {
		data.fail("market capitalization", err)
	} else {
		data.report.Market = &snap
		data.add("market capitalization: %s, 24h volume %s", usd(snap.MarketCapUSD), usd(snap.Volume24hUSD))
	}
}

func (s Stage) trackWhales(ctx context.Context, topic string, data *toolData) {
	if s.tools.Whales == nil {
		data.fail("whale activity", tools.ErrUnavailable)
		return
	}
	activity, err := s.tools.Whales.FetchWhaleActivity(ctx, topic)
	if err != nil {
		data.fail("whale activity", err)
		return
	}

	holders := append([]tools.Holder(nil), activity.Holders...)
	sort.SliceStable(holders, func(i, j int) bool { return holders[i].Balance > holders[j].Balance })
	if activity.TotalSupply > 0 {
		data.add("total supply: %.0f", activity.TotalSupply)
	}
	for i, h := range holders {
		if i == 5 {
			break
		}
		if activity.TotalSupply > 0 {
			data.add("holder #%d %s: %.0f (%.2f%% of supply)", i+1, h.Address, h.Balance, 100*h.Balance/activity.TotalSupply)
		} else {
			data.add("holder #%d %s: %.0f", i+1, h.Address, h.Balance)
		}
	}
	for _, t := range activity.LargeTransfers {
		data.add("large transfer %s: %.0f from %s to %s at %s", t.TxHash, t.Amount, t.From, t.To, t.Timestamp.Format("2006-01-02 15:04 MST"))
	}

	if risk, ok := activity.ConcentrationRisk(); ok {
		data.report.ConcentrationRisk = &risk
		data.add("concentration risk (top %d holders' share of supply): %.2f", tools.TopHolders, risk)
	} else {
		data.fail("concentration risk", fmt.Errorf("total supply unknown"))
	}
}

func (s Stage) readMarket(ctx context.Context, topic string, data *toolData) {
	var g errgroup.Group

	g.Go(func() error {
		if s.tools.Prices == nil {
			data.fail("oracle price", tools.ErrUnavailable)
			return nil
		}
		p, err := s.tools.Prices.FetchPrice(ctx, topic)
		if err != nil {
			data.fail("oracle price", err)
			return nil
		}
		data.mu.Lock()
		data.report.Price = &p
		data.mu.Unlock()
		data.add("oracle price (%s): %.6f ± %.6f published %s", p.Symbol, p.Price, p.Confidence, p.PublishTime.Format("2006-01-02 15:04:05 MST"))
		return nil
	})
	g.Go(func() error {
		if s.tools.MarketCaps == nil {
			data.fail("market data", tools.ErrUnavailable)
			return nil
		}
		snap, err := s.tools.MarketCaps.FetchMarketCap(ctx, topic)
		if err != nil {
			data.fail("market data", err)
			return nil
		}
		data.mu.Lock()
		data.report.Market = &snap
		data.mu.Unlock()
		data.add("market price %s, market cap %s, 24h volume %s, 24h change %+.2f%%",
			usd(snap.PriceUSD), usd(snap.MarketCapUSD), usd(snap.Volume24hUSD), snap.Change24hPct)
		return nil
	})
	_ = g.Wait()

	// goroutine completion order is not deterministic
	sort.Strings(data.lines)
}

func (s Stage) synthesize(prior []StageReport, data *toolData) {
	var sent *sentiment.Result
	var conc *float64
	if r, ok := find(prior, RoleDiscovery); ok && r.Sentiment != nil {
		sent = r.Sentiment
		data.add("discovery sentiment: %s", sent.AuthenticSentiment)
	} else {
		data.add("discovery sentiment: not available")
	}
	if r, ok := find(prior, RoleWhale); ok && r.ConcentrationRisk != nil {
		conc = r.ConcentrationRisk
		data.add("whale concentration risk: %.2f", *conc)
	} else {
		data.add("whale concentration risk: not available")
	}
	if r, ok := find(prior, RoleMarket); ok && r.Market != nil {
		data.add("market cap %s, 24h change %+.2f%%", usd(r.Market.MarketCapUSD), r.Market.Change24hPct)
	}
	data.report.Strategy = StrategicRead(sent, conc)
}

func (s Stage) prompt(topic string, facts []string, prior []StageReport, strategy string) generator.Prompt {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are the %s. %s\n\nInstructions:\n", s.Definition.Name, s.Definition.Description)
	for _, in := range s.Definition.Instructions {
		fmt.Fprintf(&sys, "- %s\n", in)
	}
	if s.Scope != "" {
		fmt.Fprintf(&sys, "- %s\n", s.Scope)
	}
	fmt.Fprintf(&sys, "\nExpected output: %s\n", s.Definition.ExpectedOutput)
	sys.WriteString("Use only the tool data and earlier findings provided. Never fabricate figures for unavailable sources.")

	var user strings.Builder
	fmt.Fprintf(&user, "Topic (token address): %s\n\n", topic)
	user.WriteString("Tool data:\n")
	if len(facts) == 0 {
		user.WriteString("- none\n")
	}
	for _, f := range facts {
		user.WriteString(f)
		user.WriteString("\n")
	}
	if strategy != "" {
		fmt.Fprintf(&user, "\nStrategic read: %s\n", strategy)
	}

	// Earlier stages replay as prior turns, one request/answer pair each.
	var history []generator.Message
	for _, r := range prior {
		history = append(history,
			generator.Message{Role: "user", Content: fmt.Sprintf("Report the %s stage findings for %s.", r.Role, topic)},
			generator.Message{Role: "assistant", Content: r.Narrative},
		)
	}
	if len(history) > 0 {
		fmt.Fprintf(&user, "\nBuild on the %d earlier stage reports above.\n", len(prior))
	}

	return generator.Prompt{
		Agent:   s.Definition.Name,
		System:  sys.String(),
		User:    user.String(),
		History: history,
	}
}

func usd(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.2fK", v/1e3)
	}
	return fmt.Sprintf("$%.4f", v)
}
