package domain

import "strings"

// Role is decided once when a message is created, never re-inferred by
// attribute probing at the consumers.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one conversation turn. ToolName is set only for RoleTool
// messages and names the tool that produced Content.
type Message struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	ToolName string `json:"tool_name,omitempty"`
}

// LastUserText returns the content of the latest user message.
func LastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

// LastText returns the content of the final message, usually the answer.
func LastText(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
