package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Agent runs prompts through an LLMClient and post-processes the output.
type Agent struct {
	llm    LLMClient
	logger *zap.Logger
}

func NewAgent(llm LLMClient, logger *zap.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{llm: llm, logger: logger}, nil
}

// Generate completes prompt and returns the cleaned narrative.
func (a *Agent) Generate(ctx context.Context, prompt Prompt) (string, error) {
	start := time.Now()
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		a.logger.Warn("model call failed", zap.String("agent", prompt.Agent), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", fmt.Errorf("%s: %w", prompt.Agent, err)
	}
	a.logger.Debug("model call done", zap.String("agent", prompt.Agent), zap.Duration("elapsed", time.Since(start)), zap.Int("chars", len(raw)))

	text, err := PostProcess(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", prompt.Agent, err)
	}
	return text, nil
}
