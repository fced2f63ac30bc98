package types

// Roles for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn as sent to the completion backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
