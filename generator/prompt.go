package generator

// Prompt is one model request.
type Prompt struct {
	// Agent names the stage issuing the prompt; used for logs and by MockLLM.
	Agent   string
	System  string
	User    string
	History []Message
}

// Message is an earlier turn replayed before User. Role is "user" or
// "assistant".
type Message struct {
	Role    string
	Content string
}
