package types

// Chunk is one indexed slice of a knowledge base document. Chunks carry
// no explicit id: their position in the persisted metadata sequence is
// the id, and it must match the position of the chunk's vector in the
// index.
type Chunk struct {
	File string `json:"file"`
	Text string `json:"text"`
}

// Turn is a single entry of a session's conversational history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LawsResult is what the laws_lookup tool returns to the model.
// Found=false is a normal outcome, not an error.
type LawsResult struct {
	Found   bool   `json:"found"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// ToolError is returned in place of a tool result when the model
// requests a tool that is not registered.
type ToolError struct {
	Error string `json:"error"`
}

// AgentResult is the orchestrator's answer for one question.
// ToolUsed is empty and ToolResult nil when the model answered without
// calling a tool.
type AgentResult struct {
	Answer     string
	KBSources  []string
	ToolUsed   string
	ToolResult any
}
