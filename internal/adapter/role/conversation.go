package role

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
)

// TranscriptSize caps the conversation partner's private transcript.
const TranscriptSize = 6

const conversationPersona = `You are a friendly, patient English conversation partner.

Role:
- Take part in natural conversation
- Correct mistakes gently, never harshly
- Ask follow-up questions to keep the conversation going
- Suggest alternative ways to say things
- Encourage the learner to say more

When the learner makes a mistake:
1. Respond naturally first
2. Point out the mistake gently
3. Give the correct form
4. Explain briefly
5. Continue the conversation`

const conversationSuffix = "Reply naturally and helpfully:"

// ConversationPartner keeps its own rolling transcript instead of the shared
// session history. Each session owns one instance.
type ConversationPartner struct {
	gen port.Generator

	mu         sync.Mutex
	transcript []domain.ConversationTurn
}

// NewConversationPartner creates a conversation partner with an empty transcript.
func NewConversationPartner(gen port.Generator) *ConversationPartner {
	return &ConversationPartner{gen: gen}
}

func (c *ConversationPartner) ID() domain.RoleID { return domain.RoleConversation }
func (c *ConversationPartner) Name() string      { return "Conversation Partner" }
func (c *ConversationPartner) Persona() string   { return conversationPersona }

// Respond ignores req.History and req.Evidence. A failed generation leaves the
// transcript as it was before the call.
func (c *ConversationPartner) Respond(ctx context.Context, req port.RoleRequest) (*port.RoleAnswer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.transcript
	c.push(domain.NewTurn(domain.TurnUser, req.Query, nil))

	var b strings.Builder
	b.WriteString(conversationPersona)
	b.WriteString("\n\nConversation so far:\n")
	for _, t := range c.transcript {
		fmt.Fprintf(&b, "%s: %s\n", speaker(t.Role), t.Content)
	}
	b.WriteString("\n")
	b.WriteString(conversationSuffix)
	prompt := b.String()

	answer, err := generate(ctx, c.gen, domain.RoleConversation, prompt)
	if err != nil {
		c.transcript = previous
		return nil, err
	}
	c.push(domain.NewTurn(domain.TurnAssistant, answer.Text, nil))
	return answer, nil
}

// Transcript returns a copy of the private transcript.
func (c *ConversationPartner) Transcript() []domain.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.LastTurns(c.transcript, TranscriptSize)
}

func (c *ConversationPartner) push(t domain.ConversationTurn) {
	c.transcript = append(c.transcript, t)
	if len(c.transcript) > TranscriptSize {
		c.transcript = append(c.transcript[:0:0], c.transcript[len(c.transcript)-TranscriptSize:]...)
	}
}
