package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/arturoeanton/go-english-tutor/internal/textutil"
)

// Context the critic sees from the conversation.
const (
	ReflectionHistoryTurns = 4
	ReflectionTurnChars    = 100
)

// ReflectionService asks the generator to grade an answer and optionally rewrite it.
type ReflectionService struct {
	gen port.Generator
}

// NewReflectionService creates a critic backed by gen.
func NewReflectionService(gen port.Generator) *ReflectionService {
	return &ReflectionService{gen: gen}
}

// Critique grades answer. It never fails: a generation error yields the default
// verdict with Error set, and the caller keeps the original answer.
func (s *ReflectionService) Critique(ctx context.Context, query, answer, roleName string, history []domain.ConversationTurn) domain.ReflectionVerdict {
	prompt := reflectionPrompt(query, answer, roleName, history)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		err = fmt.Errorf("%w: %w", port.ErrReflection, err)
		slog.Warn("reflection failed, keeping original answer", "role", roleName, "error", err)
		v := domain.DefaultVerdict()
		v.Error = err.Error()
		return v
	}
	return ParseVerdict(raw, answer)
}

func reflectionPrompt(query, answer, roleName string, history []domain.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("You are the quality reviewer of an English tutoring system.\n\n")

	b.WriteString("Recent conversation:\n")
	turns := domain.LastTurns(history, ReflectionHistoryTurns)
	if len(turns) == 0 {
		b.WriteString("(no history)\n")
	}
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", speaker(t.Role), textutil.Truncate(t.Content, ReflectionTurnChars))
	}

	fmt.Fprintf(&b, "\nCurrent question:\n%s\n\n", query)
	fmt.Fprintf(&b, "Answering role:\n%s\n\n", roleName)
	fmt.Fprintf(&b, "Answer under review:\n%s\n\n", answer)

	b.WriteString(`Rate the answer from 1 to 10 on each dimension:
1. Accuracy: are there factual or linguistic errors?
2. Coherence: does it connect to the previous questions, if any?
3. Completeness: does it fully answer the question?
4. Clarity: is it easy to understand?
5. Usefulness: is it practical for the learner?

If any dimension scores below 7, the answer needs improvement.

Reply using exactly these labels:
Confidence Score: [0.0-1.0]
Needs Improvement: [Yes/No]
Critique: [short critique]
Improved Response: [only when Needs Improvement is Yes]

Be strict but fair. Only rewrite when it is really necessary.`)
	return b.String()
}

func speaker(r domain.TurnRole) string {
	if r == domain.TurnUser {
		return "Learner"
	}
	return "Tutor"
}
