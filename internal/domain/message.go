package domain

// Role attributes a turn to the user or the agent.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// EmptyPlaceholder is shown in place of a turn whose content is the empty string.
const EmptyPlaceholder = "(empty message)"

// Turn is one message in a conversation. The zero-length Content is a real
// message, distinct from the absence of a turn.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Display returns the text to render for the turn.
func (t Turn) Display() string {
	if t.Content == "" {
		return EmptyPlaceholder
	}
	return t.Content
}

// Alternates reports whether turns strictly alternate user/assistant,
// starting with the user.
func Alternates(turns []Turn) bool {
	for i, t := range turns {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if t.Role != want {
			return false
		}
	}
	return true
}
