package types

// Role is the author of a conversation message
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// IsValid checks if the Role is a known author kind
func (r Role) IsValid() bool {
	return r == RoleHuman || r == RoleAssistant
}

func (r Role) String() string {
	return string(r)
}
