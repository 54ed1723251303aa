package generator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// Reasoning models behind OpenAI-compatible gateways may prefix their
	// answer with a <think> block.
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// PostProcess turns raw model output into a narrative, rejecting empty output.
func PostProcess(raw string) (string, error) {
	text := thinkBlock.ReplaceAllString(raw, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("model returned empty narrative")
	}
	return text, nil
}
