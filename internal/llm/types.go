package llm

// Chat roles understood by OpenAI-compatible providers.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams tunes a single completion. Zero values leave the provider default in place.
type ChatParams struct {
	// Model overrides the client's model.
	Model string
	// MaxTokens caps the reply length.
	MaxTokens int
	// Temperature controls sampling randomness.
	Temperature float32
}
