package domain

// Role tags a derived message for the LLM client.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in the sequence handed to an LLM client.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
