package role

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	prompts []string
	reply   string
	err     error
}

func (f *fakeGenerator) ModelName() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func hit(text string) domain.SearchHit {
	return domain.SearchHit{Document: domain.Document{ID: text, Text: text, SourceKind: domain.SourceGrammar}}
}

func turns(n int) []domain.ConversationTurn {
	out := make([]domain.ConversationTurn, n)
	for i := range out {
		role := domain.TurnUser
		if i%2 == 1 {
			role = domain.TurnAssistant
		}
		out[i] = domain.NewTurn(role, "turn-"+string(rune('a'+i)), nil)
	}
	return out
}

func TestComposePrompt_Order(t *testing.T) {
	prompt := composePrompt("PERSONA", turns(2), []domain.SearchHit{hit("evidence one")}, "what is a gerund?", "SUFFIX")

	persona := strings.Index(prompt, "PERSONA")
	history := strings.Index(prompt, "Recent conversation:")
	evidence := strings.Index(prompt, "Reference material:")
	query := strings.Index(prompt, "Learner's question: what is a gerund?")
	suffix := strings.Index(prompt, "SUFFIX")

	for _, pos := range []int{persona, history, evidence, query, suffix} {
		require.GreaterOrEqual(t, pos, 0, prompt)
	}
	assert.True(t, persona < history && history < evidence && evidence < query && query < suffix)
	assert.Contains(t, prompt, "Learner: turn-a\n")
	assert.Contains(t, prompt, "Tutor: turn-b\n")
	assert.Contains(t, prompt, "[1] evidence one\n")
}

func TestComposePrompt_Limits(t *testing.T) {
	history := turns(8)
	history[7].Content = strings.Repeat("x", 300)
	evidence := []domain.SearchHit{hit(strings.Repeat("e", 250)), hit("second"), hit("third")}

	prompt := composePrompt("P", history, evidence, "q", "S")

	assert.NotContains(t, prompt, "turn-a")
	assert.NotContains(t, prompt, "turn-b")
	assert.Contains(t, prompt, "turn-c")
	assert.Contains(t, prompt, strings.Repeat("x", HistoryTurnChars)+"...\n")
	assert.NotContains(t, prompt, strings.Repeat("x", HistoryTurnChars+1))
	assert.Contains(t, prompt, "[1] "+strings.Repeat("e", EvidenceChars)+"...\n")
	assert.Contains(t, prompt, "[2] second\n")
	assert.NotContains(t, prompt, "third")
}

func TestComposePrompt_OmitsEmptySections(t *testing.T) {
	prompt := composePrompt("P", nil, nil, "hello", "S")
	assert.NotContains(t, prompt, "Recent conversation:")
	assert.NotContains(t, prompt, "Reference material:")
	assert.Equal(t, "P\n\nLearner's question: hello\n\nS", prompt)
}

func TestTemplateRoles(t *testing.T) {
	tests := []struct {
		name   string
		build  func(port.Generator) port.Role
		id     domain.RoleID
		marker string
	}{
		{"grammar", NewGrammarExpert, domain.RoleGrammar, "grammar teacher"},
		{"vocabulary", NewVocabularyExpert, domain.RoleVocabulary, "vocabulary teacher"},
		{"exercise", NewExerciseGenerator, domain.RoleExercise, "designing effective English exercises"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: "answer"}
			r := tt.build(gen)
			assert.Equal(t, tt.id, r.ID())
			assert.NotEmpty(t, r.Name())

			ans, err := r.Respond(context.Background(), port.RoleRequest{Query: "q", Evidence: []domain.SearchHit{hit("ev")}})
			require.NoError(t, err)
			assert.Equal(t, tt.id, ans.Role)
			assert.Equal(t, "answer", ans.Text)
			require.Len(t, gen.prompts, 1)
			assert.True(t, strings.HasPrefix(gen.prompts[0], r.Persona()))
			assert.Contains(t, gen.prompts[0], tt.marker)
			assert.Contains(t, gen.prompts[0], "[1] ev")
		})
	}
}

func TestRespond_GenerationFailures(t *testing.T) {
	t.Run("generator error", func(t *testing.T) {
		r := NewGrammarExpert(&fakeGenerator{err: errors.New("quota exceeded")})
		_, err := r.Respond(context.Background(), port.RoleRequest{Query: "q"})
		require.Error(t, err)
		assert.ErrorIs(t, err, port.ErrGeneration)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("blank reply", func(t *testing.T) {
		r := NewVocabularyExpert(&fakeGenerator{reply: "  \n"})
		_, err := r.Respond(context.Background(), port.RoleRequest{Query: "q"})
		assert.ErrorIs(t, err, port.ErrGeneration)
	})
}

func TestConversationPartner_Transcript(t *testing.T) {
	gen := &fakeGenerator{reply: "nice to meet you"}
	c := NewConversationPartner(gen)

	_, err := c.Respond(context.Background(), port.RoleRequest{
		Query:    "let's chat",
		History:  turns(2),
		Evidence: []domain.SearchHit{hit("should not appear")},
	})
	require.NoError(t, err)

	prompt := gen.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, conversationPersona))
	assert.Contains(t, prompt, "Learner: let's chat\n")
	assert.NotContains(t, prompt, "turn-a")
	assert.NotContains(t, prompt, "should not appear")

	transcript := c.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, domain.TurnAssistant, transcript[1].Role)
	assert.Equal(t, "nice to meet you", transcript[1].Content)
}

func TestConversationPartner_TranscriptCap(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := NewConversationPartner(gen)
	for i := 0; i < 5; i++ {
		_, err := c.Respond(context.Background(), port.RoleRequest{Query: "message"})
		require.NoError(t, err)
	}
	assert.Len(t, c.Transcript(), TranscriptSize)
}

func TestConversationPartner_FailureRollsBack(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c := NewConversationPartner(gen)
	for i := 0; i < 3; i++ {
		_, err := c.Respond(context.Background(), port.RoleRequest{Query: "message"})
		require.NoError(t, err)
	}
	before := c.Transcript()

	gen.err = errors.New("down")
	_, err := c.Respond(context.Background(), port.RoleRequest{Query: "lost"})
	require.ErrorIs(t, err, port.ErrGeneration)
	assert.Equal(t, before, c.Transcript())
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry(&fakeGenerator{reply: "ok"})
	assert.Equal(t, domain.RoleIDs, reg.Available())

	_, err := reg.Get("poet")
	assert.ErrorIs(t, err, port.ErrRoleNotFound)

	ans, err := reg.Respond(context.Background(), domain.RoleExercise, port.RoleRequest{Query: "quiz me"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleExercise, ans.Role)

	other := NewRegistry(&fakeGenerator{reply: "ok"})
	a, _ := reg.Get(domain.RoleConversation)
	b, _ := other.Get(domain.RoleConversation)
	assert.NotSame(t, a, b)
}
