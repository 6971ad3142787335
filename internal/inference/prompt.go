package inference

import "strings"

// Role markers of the chat prompt format.
const (
	SystemTag    = "<|system|>"
	UserTag      = "<|user|>"
	AssistantTag = "<|assistant|>"
	EndOfTurn    = "</s>"
)

// DefaultSystemPrompt is used when a chat request carries none.
const DefaultSystemPrompt = "You are a helpful assistant. Answer concisely and accurately."

// ChatStopSequences end a chat reply before the model starts a new turn.
var ChatStopSequences = []string{EndOfTurn, UserTag, SystemTag}

// FormatChatPrompt renders a system and user message as a single
// role-tagged prompt ending with the assistant marker.
func FormatChatPrompt(system, user string) string {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	var sb strings.Builder
	sb.Grow(len(system) + len(user) + 48)
	sb.WriteString(SystemTag)
	sb.WriteByte('\n')
	sb.WriteString(system)
	sb.WriteString(EndOfTurn)
	sb.WriteByte('\n')
	sb.WriteString(UserTag)
	sb.WriteByte('\n')
	sb.WriteString(user)
	sb.WriteString(EndOfTurn)
	sb.WriteByte('\n')
	sb.WriteString(AssistantTag)
	sb.WriteByte('\n')
	return sb.String()
}
