// Package pipeline runs the specialist analysis stages for one topic.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"token_analyst/generator"
	"token_analyst/tools"
)

var (
	ErrEmptyTopic = errors.New("topic is required")
	// ErrTimeout means the run exceeded its time budget; no partial narrative
	// is returned.
	ErrTimeout = errors.New("analysis timed out")
)

// DefaultTimeout is the budget callers are told to expect ("up to ~60 seconds").
const DefaultTimeout = 60 * time.Second

type Options struct {
	Timeout time.Duration
	// Network is the sub-network network-specific runs are scoped to.
	Network string
	Logger  *zap.Logger
}

// Orchestrator runs stages strictly in order, each seeing every earlier report.
type Orchestrator struct {
	stages  map[Role]Stage
	timeout time.Duration
	network string
	logger  *zap.Logger
}

// New wires every role to llm and the tool set.
func New(llm generator.LLMClient, set tools.Set, opts Options) (*Orchestrator, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Network == "" {
		opts.Network = "0G"
	}
	agent, err := generator.NewAgent(llm, opts.Logger)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		stages:  make(map[Role]Stage, len(FullSequence)),
		timeout: opts.Timeout,
		network: opts.Network,
		logger:  opts.Logger,
	}
	for _, role := range FullSequence {
		st, err := NewStage(role, agent, set, opts.Logger)
		if err != nil {
			return nil, err
		}
		o.stages[role] = st
	}
	return o, nil
}

// Network is the sub-network used by ModeNetworkSpecific.
func (o *Orchestrator) Network() string { return o.network }

func (o *Orchestrator) plan(mode Mode) ([]Stage, error) {
	switch mode {
	case ModeFull, ModeNetworkSpecific:
		out := make([]Stage, 0, len(FullSequence))
		for _, role := range FullSequence {
			st := o.stages[role]
			if mode == ModeNetworkSpecific {
				st = st.WithScope(networkScope(o.network))
			}
			out = append(out, st)
		}
		return out, nil
	case ModeDiscoveryOnly:
		return []Stage{o.stages[RoleDiscovery]}, nil
	}
	return nil, fmt.Errorf("unsupported mode %d", mode)
}

// Analyze runs the stages for mode against topic within the time budget.
// The last stage's narrative is the aggregated narrative.
func (o *Orchestrator) Analyze(ctx context.Context, topic string, mode Mode) (Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{}, ErrEmptyTopic
	}
	stages, err := o.plan(mode)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	log := o.logger.With(zap.String("topic", topic), zap.Stringer("mode", mode))
	reports := make([]StageReport, 0, len(stages))
	for _, st := range stages {
		stageStart := time.Now()
		prior := append([]StageReport(nil), reports...)
		report, err := st.Run(ctx, topic, prior)
		if cerr := o.budgetErr(ctx, st.Role); cerr != nil {
			log.Warn("analysis aborted", zap.String("stage", string(st.Role)), zap.Duration("elapsed", time.Since(start)), zap.Error(cerr))
			return Result{}, cerr
		}
		if err != nil {
			log.Warn("stage failed", zap.String("stage", string(st.Role)), zap.Error(err))
			return Result{}, fmt.Errorf("%s stage: %w", st.Role, err)
		}
		log.Info("stage complete",
			zap.String("stage", string(st.Role)),
			zap.Duration("elapsed", time.Since(stageStart)),
			zap.Int("tool_errors", len(report.ToolErrors)))
		reports = append(reports, report)
	}

	res := Result{
		Topic:     topic,
		Mode:      mode,
		Narrative: reports[len(reports)-1].Narrative,
		Reports:   reports,
		Elapsed:   time.Since(start),
	}
	log.Info("analysis complete", zap.Duration("elapsed", res.Elapsed), zap.Int("narrative_chars", len(res.Narrative)))
	return res, nil
}

func (o *Orchestrator) budgetErr(ctx context.Context, role Role) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s stage exceeded the %s budget", ErrTimeout, role, o.timeout)
	default:
		return fmt.Errorf("%s stage: %w", role, err)
	}
}
