package generator

import (
	"context"
	"fmt"
	"strings"
)

// MockLLM is a deterministic stand-in for local runs; it never calls a model.
// It echoes the bullet lines of the prompt so downstream formatting has
// something realistic to work on.
type MockLLM struct{}

func (m MockLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("## ")
	if prompt.Agent != "" {
		sb.WriteString(prompt.Agent)
	} else {
		sb.WriteString("Report")
	}
	sb.WriteString("\n\n")
	sb.WriteString("Mock narrative generated without a model call.\n\n")
	if n := len(prompt.History); n > 0 {
		fmt.Fprintf(&sb, "Read %d earlier turns.\n", n)
	}
	for _, line := range strings.Split(prompt.User, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "Strategic read:") {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
