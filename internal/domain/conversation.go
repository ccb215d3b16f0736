package domain

import "time"

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	TurnUser      TurnRole = "user"
	TurnAssistant TurnRole = "assistant"
)

// ConversationTurn is one message in a session. Turns are append-only.
type ConversationTurn struct {
	Role      TurnRole          `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewTurn stamps a turn with the current UTC time.
func NewTurn(role TurnRole, content string, metadata map[string]string) ConversationTurn {
	return ConversationTurn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// LastTurns returns at most n trailing turns. The result shares no backing array with turns.
func LastTurns(turns []ConversationTurn, n int) []ConversationTurn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]ConversationTurn, len(turns))
	copy(out, turns)
	return out
}
