// Package role implements the tutoring personas behind port.Role.
package role

import (
	"context"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/arturoeanton/go-english-tutor/internal/textutil"
)

// Limits applied while composing a role prompt.
const (
	MaxHistoryTurns  = 6
	MaxEvidence      = 2
	HistoryTurnChars = 150
	EvidenceChars    = 200
)

// composePrompt assembles persona, history, evidence, query and suffix in that order.
// Empty sections are omitted.
func composePrompt(persona string, history []domain.ConversationTurn, evidence []domain.SearchHit, query, suffix string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")

	if turns := domain.LastTurns(history, MaxHistoryTurns); len(turns) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "%s: %s\n", speaker(t.Role), textutil.Truncate(t.Content, HistoryTurnChars))
		}
		b.WriteString("\n")
	}

	if len(evidence) > MaxEvidence {
		evidence = evidence[:MaxEvidence]
	}
	if len(evidence) > 0 {
		b.WriteString("Reference material:\n")
		for i, hit := range evidence {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, textutil.Truncate(hit.Document.Text, EvidenceChars))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Learner's question: %s\n\n", query)
	b.WriteString(suffix)
	return b.String()
}

func speaker(r domain.TurnRole) string {
	if r == domain.TurnUser {
		return "Learner"
	}
	return "Tutor"
}

// generate calls gen and normalizes its failures to port.ErrGeneration.
func generate(ctx context.Context, gen port.Generator, id domain.RoleID, prompt string) (*port.RoleAnswer, error) {
	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrGeneration, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s produced an empty reply", port.ErrGeneration, id)
	}
	return &port.RoleAnswer{Role: id, Text: text, Prompt: prompt}, nil
}

// templateRole is a stateless role defined entirely by its persona and suffix.
type templateRole struct {
	id      domain.RoleID
	name    string
	persona string
	suffix  string
	gen     port.Generator
}

func (r *templateRole) ID() domain.RoleID { return r.id }
func (r *templateRole) Name() string      { return r.name }
func (r *templateRole) Persona() string   { return r.persona }

func (r *templateRole) Respond(ctx context.Context, req port.RoleRequest) (*port.RoleAnswer, error) {
	prompt := composePrompt(r.persona, req.History, req.Evidence, req.Query, r.suffix)
	return generate(ctx, r.gen, r.id, prompt)
}
