package generator

import "context"

// LLMClient is the model shared by every stage. Implementations must honour
// ctx cancellation.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings is the provider-neutral configuration handed to constructors.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
