// Package dispatcher maps inbound commands onto the credit ledger and the
// analysis pipeline and owns the user-facing reply for every outcome.
//
// A paid command moves through
//
//	RECEIVED → BALANCE_CHECKED → {REJECTED_INSUFFICIENT | DEBITED} → RUNNING → {SUMMARIZED | FAILED}
//
// A paid command without its topic ends INVALID_INPUT before the ledger is
// touched. Credits debited for a run that then fails are not refunded.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"token_analyst/pipeline"
	"token_analyst/summary"
)

type State string

const (
	StateReceived             State = "RECEIVED"
	StateInvalidInput         State = "INVALID_INPUT"
	StateBalanceChecked       State = "BALANCE_CHECKED"
	StateRejectedInsufficient State = "REJECTED_INSUFFICIENT"
	StateDebited              State = "DEBITED"
	StateRunning              State = "RUNNING"
	StateSummarized           State = "SUMMARIZED"
	StateFailed               State = "FAILED"
	// StateAnswered ends free commands (credits, help).
	StateAnswered State = "ANSWERED"
)

// CreditLedger is the fail-closed ledger contract: unreadable balances are 0
// and failed debits are false.
type CreditLedger interface {
	GetBalance(ctx context.Context, userID string) int
	Consume(ctx context.Context, userID string, amount int) bool
}

type Analyzer interface {
	Analyze(ctx context.Context, topic string, mode pipeline.Mode) (pipeline.Result, error)
}

type Request struct {
	// ID is generated when empty.
	ID      string
	UserID  string
	Command string
	Args    []string
}

// Outcome is the terminal result of one request.
type Outcome struct {
	RequestID string
	State     State
	// Trace lists every state the request passed through, in order.
	Trace          []State
	Reply          string
	Notices        []string
	PaymentOptions []PaymentOption
	Summary        *summary.Summary
	Err            error
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

type Options struct {
	CreditsPerRequest int
	PaymentURL        string
	// Network names the sub-network of network_intel replies.
	Network string
	// Timeout is the pipeline budget quoted in progress notices.
	Timeout        time.Duration
	DiscoveryBrief string
	Logger         *zap.Logger
}

type Dispatcher struct {
	ledger   CreditLedger
	analyzer Analyzer
	opts     Options
	logger   *zap.Logger
}

func New(ledger CreditLedger, analyzer Analyzer, opts Options) (*Dispatcher, error) {
	if ledger == nil {
		return nil, fmt.Errorf("credit ledger is required")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if opts.CreditsPerRequest <= 0 {
		opts.CreditsPerRequest = 1
	}
	if opts.Network == "" {
		opts.Network = "0G"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = pipeline.DefaultTimeout
	}
	if opts.DiscoveryBrief == "" {
		opts.DiscoveryBrief = DefaultDiscoveryBrief
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.PaymentURL = strings.TrimRight(opts.PaymentURL, "/")
	return &Dispatcher{ledger: ledger, analyzer: analyzer, opts: opts, logger: opts.Logger}, nil
}

// Handle runs req to a terminal state. It never panics on bad input and
// every failure is reported in the Outcome.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Outcome {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	out := Outcome{RequestID: req.ID}
	out.enter(StateReceived)

	cmd := normalizeCommand(req.Command)
	log := d.logger.With(zap.String("request_id", req.ID), zap.String("user_id", req.UserID), zap.String("command", cmd))

	if strings.TrimSpace(req.UserID) == "" {
		d.invalid(&out, cmd, "missing user id", "❌ Unable to identify the requesting user.")
		log.Info("request rejected", zap.Error(out.Err))
		return out
	}

	switch cmd {
	case CmdHelp, CmdStart:
		out.Reply = d.helpText()
		out.enter(StateAnswered)
	case CmdCredits:
		balance := d.ledger.GetBalance(ctx, req.UserID)
		out.Reply = d.creditsText(balance)
		out.PaymentOptions = paymentOptions(d.opts.PaymentURL, req.UserID)
		out.enter(StateAnswered)
	default:
		pc, ok := paid[cmd]
		if !ok {
			d.invalid(&out, cmd, "unknown command", "Unknown command. Use /help to see what I can do.\n\n"+d.helpText())
			break
		}
		d.runPaid(ctx, &out, req, cmd, pc, log)
	}

	log.Info("request finished", zap.String("state", string(out.State)), zap.Error(out.Err))
	return out
}

func (d *Dispatcher) invalid(out *Outcome, cmd, reason, reply string) {
	out.Err = &InputError{Command: cmd, Reason: reason}
	out.Reply = reply
	out.enter(StateInvalidInput)
}

func (d *Dispatcher) runPaid(ctx context.Context, out *Outcome, req Request, cmd string, pc paidCommand, log *zap.Logger) {
	topic := d.opts.DiscoveryBrief
	if pc.needsTopic {
		topic = ""
		if len(req.Args) > 0 {
			topic = strings.TrimSpace(req.Args[0])
		}
		if topic == "" {
			d.invalid(out, cmd, "missing token address", pc.usage)
			return
		}
	}

	required := d.opts.CreditsPerRequest
	balance := d.ledger.GetBalance(ctx, req.UserID)
	out.enter(StateBalanceChecked)
	if balance < required {
		out.Err = &InsufficientCreditsError{Balance: balance, Required: required}
		out.Reply = insufficientText(balance, required)
		out.PaymentOptions = paymentOptions(d.opts.PaymentURL, req.UserID)
		out.enter(StateRejectedInsufficient)
		return
	}

	if !d.ledger.Consume(ctx, req.UserID, required) {
		out.Err = &LedgerError{Op: "consume", UserID: req.UserID}
		out.Reply = "❌ Payment processing failed. Please try again."
		out.enter(StateFailed)
		return
	}
	out.enter(StateDebited)
	out.Notices = append(out.Notices,
		fmt.Sprintf("✅ Analysis started! (-%s, %d remaining)", plural(required, "credit"), balance-required),
		d.progressNotice(cmd, topic))

	out.enter(StateRunning)
	log.Debug("pipeline started", zap.Stringer("mode", pc.mode))
	res, err := d.analyzer.Analyze(ctx, topic, pc.mode)
	if err != nil {
		// the debit stands
		out.Err = &PipelineError{Command: cmd, Err: err}
		out.Reply = fmt.Sprintf("❌ %s failed: %v", pc.failureVerb, err)
		out.enter(StateFailed)
		log.Warn("pipeline failed after debit", zap.Int("credits_spent", required), zap.Error(err))
		return
	}

	sum := summary.Summarize(res.Narrative)
	out.Summary = &sum
	n := utf8.RuneCountInString(res.Narrative)
	switch pc.mode {
	case pipeline.ModeDiscoveryOnly:
		out.Reply = summary.FormatDiscovery(sum, n)
	case pipeline.ModeNetworkSpecific:
		out.Reply = summary.FormatNetworkIntel(sum, topic, d.opts.Network)
	default:
		out.Reply = summary.FormatTokenAnalysis(sum, topic, n)
	}
	out.enter(StateSummarized)
}

func (d *Dispatcher) progressNotice(cmd, topic string) string {
	wait := fmt.Sprintf("⏳ This may take up to %d seconds...", int(d.opts.Timeout.Seconds()))
	switch cmd {
	case CmdDiscover:
		return "🔍 Discovering newly funded tokens...\n" + wait
	case CmdNetworkIntel:
		return fmt.Sprintf("🔍 %s Network Intelligence for: %s\n%s", d.opts.Network, topic, wait)
	}
	return fmt.Sprintf("🔍 Analyzing token: %s\n%s", topic, wait)
}
