package llm

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsSystemPrompt reports whether the backend accepts a dedicated
	// system instruction.
	SupportsSystemPrompt bool
}
