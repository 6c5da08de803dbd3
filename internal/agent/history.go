package agent

import "github.com/firebase/genkit/go/ai"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one stored conversation turn. HadToolCall marks assistant
// turns that carried a retrieval request rather than a final answer.
type Turn struct {
	Role        Role
	Content     string
	HadToolCall bool
}

// visibleTurns returns the subsequence of history replayed to the
// generation step: all user and system turns, plus assistant turns that
// did not themselves carry a tool call. Intermediate tool-routing turns
// are excluded so tool-call syntax never leaks into answers.
//
// Pure function: the input slice is never mutated.
func visibleTurns(history []Turn) []Turn {
	visible := make([]Turn, 0, len(history))
	for _, turn := range history {
		if turn.Role == RoleAssistant && turn.HadToolCall {
			continue
		}
		visible = append(visible, turn)
	}
	return visible
}

// toMessages converts turns to Genkit messages.
func toMessages(turns []Turn) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(turn.Content)))
		case RoleSystem:
			msgs = append(msgs, ai.NewMessage(ai.RoleSystem, nil, ai.NewTextPart(turn.Content)))
		default:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(turn.Content)))
		}
	}
	return msgs
}
