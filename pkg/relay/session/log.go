package session

import "github.com/vango-go/talkrelay/pkg/core/types"

// conversationLog is the session-owned ordered log of turns. Turns are
// append-only except for the open agent turn, which grows in place as deltas
// arrive. The session goroutine is the only writer, so no locking is needed.
type conversationLog struct {
	turns []types.Message
}

func newConversationLog() *conversationLog {
	return &conversationLog{turns: make([]types.Message, 0, 16)}
}

func (l *conversationLog) appendUser(text string) {
	l.turns = append(l.turns, types.Message{Role: types.RoleUser, Content: text})
}

func (l *conversationLog) appendAgent(text string) int {
	l.turns = append(l.turns, types.Message{Role: types.RoleAssistant, Content: text})
	return len(l.turns) - 1
}

func (l *conversationLog) appendAgentDelta(idx int, delta string) {
	if idx < 0 || idx >= len(l.turns) || l.turns[idx].Role != types.RoleAssistant {
		return
	}
	l.turns[idx].Content += delta
}

func (l *conversationLog) snapshot() []types.Message {
	out := make([]types.Message, len(l.turns))
	copy(out, l.turns)
	return out
}

func (l *conversationLog) len() int {
	return len(l.turns)
}
