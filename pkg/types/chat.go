package types

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two transcript roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body accepted by POST /api/chat.
// Only Messages[0].Content is forwarded to the provider.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// Prompt returns the content of the first message, if any.
func (r ChatRequest) Prompt() (string, bool) {
	if len(r.Messages) == 0 {
		return "", false
	}
	return r.Messages[0].Content, true
}

// ErrorResponse is written when a relay fails before any fragment was sent.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
