package domain

// ChatTurn is one prior exchange of the conversation.
type ChatTurn struct {
	Question string
	Answer   string
}

// ChatHistory is the ordered list of prior turns, oldest first.
type ChatHistory []ChatTurn

// IsEmpty reports whether there are no prior turns.
func (h ChatHistory) IsEmpty() bool { return len(h) == 0 }

// QueryResult is the outcome of one conversational query.
// Question is the caller's question verbatim; ResolvedQuestion is the
// standalone query that was embedded for retrieval.
type QueryResult struct {
	Answer           string
	Question         string
	ResolvedQuestion string
	Chunks           []ScoredChunk
}

// Message is a single chat message sent to a generative model.
type Message struct {
	Role    Role
	Content string
}

// Role identifies the author of a Message.
type Role string

const (
	// RoleSystem carries instructions.
	RoleSystem Role = "system"
	// RoleUser carries user content.
	RoleUser Role = "user"
	// RoleAssistant carries prior model output.
	RoleAssistant Role = "assistant"
)

// GenerationResult is the text produced by a generative model plus token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
