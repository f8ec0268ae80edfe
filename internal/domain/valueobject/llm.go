package valueobject

// LLMMessage is one message in an LLM request's conversation (system/user/assistant).
type LLMMessage struct {
	Role    string
	Content string
}

// LLMRequest is the provider-agnostic request built by the cognitive cycle
//.
type LLMRequest struct {
	Messages    []LLMMessage
	MaxTokens   int
	Temperature float64
	Model       string
}

// LLMResponse is the provider-agnostic response handed to the output validator.
type LLMResponse struct {
	Text         string
	FinishReason string
	TokensUsed   int
}
