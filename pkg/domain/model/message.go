package model

import (
	"strings"

	"github.com/himeno-lab/kotori/pkg/domain/types"
)

// Message is a single conversation turn, tagged with its author role
type Message struct {
	Role    types.Role
	Content string
}

// NewHumanMessage creates a Message authored by the user
func NewHumanMessage(content string) Message {
	return Message{Role: types.RoleHuman, Content: content}
}

// NewAssistantMessage creates a Message authored by the companion
func NewAssistantMessage(content string) Message {
	return Message{Role: types.RoleAssistant, Content: content}
}

// RecentWindow returns the last n messages, or all of them when the
// history is shorter than n.
func RecentWindow(messages []Message, n int) []Message {
	if n <= 0 || len(messages) == 0 {
		return nil
	}
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// JoinContents concatenates message contents with a separator, used to
// build similarity-search query strings from a recent window.
func JoinContents(messages []Message, sep string) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, sep)
}
