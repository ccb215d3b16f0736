package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/arturoeanton/go-english-tutor/internal/sanitize"
	"github.com/arturoeanton/go-english-tutor/pkg/config"
)

// Turn shaping.
const (
	EvidencePerAnswer = 2
	HistoryPerAnswer  = 6
)

// Reply is the outcome of one learner turn.
type Reply struct {
	SessionID       string                    `json:"session_id"`
	Answer          string                    `json:"answer"`
	OriginalAnswer  string                    `json:"original_answer,omitempty"`
	RoutedTo        domain.RoleID             `json:"routed_to"`
	RoleName        string                    `json:"role_name"`
	MatchedKeywords []string                  `json:"matched_keywords"`
	Evidence        []domain.SearchHit        `json:"evidence"`
	RetrievalOK     bool                      `json:"retrieval_ok"`
	Reflection      *domain.ReflectionVerdict `json:"reflection,omitempty"`
	Rewritten       bool                      `json:"rewritten"`
	Warnings        []string                  `json:"warnings,omitempty"`
}

// AskOptions adjusts a single turn.
type AskOptions struct {
	// Reflect overrides the configured reflection setting when non-nil.
	Reflect *bool
}

// TutorService runs the answering pipeline:
// sanitize, retrieve, route, generate, reflect, record.
type TutorService struct {
	retrieval *RetrievalService
	critic    *ReflectionService
	sessions  *SessionManager
	store     port.ProgressStore
	cfg       config.TutorConfig
}

// NewTutorService wires the pipeline.
func NewTutorService(retrieval *RetrievalService, critic *ReflectionService, sessions *SessionManager, store port.ProgressStore, cfg config.TutorConfig) *TutorService {
	return &TutorService{
		retrieval: retrieval,
		critic:    critic,
		sessions:  sessions,
		store:     store,
		cfg:       cfg,
	}
}

// Sessions exposes the session manager.
func (t *TutorService) Sessions() *SessionManager {
	return t.sessions
}

// Ask answers query within the session. Rejected input returns a
// *sanitize.InputError; a failed primary generation returns an error wrapping
// port.ErrGeneration and leaves the conversation untouched. Retrieval and
// reflection failures only add warnings.
func (t *TutorService) Ask(ctx context.Context, sessionID, query string, opts AskOptions) (*Reply, error) {
	session, err := t.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	clean := sanitize.Sanitize(query)
	if err := clean.Err(); err != nil {
		slog.Warn("input rejected", "session_id", sessionID, "error", err)
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	reply := &Reply{SessionID: sessionID, Evidence: []domain.SearchHit{}}
	if clean.Truncated {
		reply.Warnings = append(reply.Warnings, clean.Warning)
	}

	// 1. Retrieve reference material
	retrieveCtx, cancel := context.WithTimeout(ctx, t.cfg.RetrievalTimeout)
	retrieved := t.retrieval.Retrieve(retrieveCtx, clean.Text, t.cfg.TopK)
	cancel()
	reply.RetrievalOK = retrieved.Success
	reply.Evidence = retrieved.Hits
	if !retrieved.Success {
		reply.Warnings = append(reply.Warnings, "Reference material is unavailable; answering without it.")
	}

	// 2. Route
	decision := Route(clean.Text)
	reply.RoutedTo = decision.Role
	reply.MatchedKeywords = decision.MatchedKeywords

	r, err := session.roles.Get(decision.Role)
	if err != nil {
		return nil, err
	}
	reply.RoleName = r.Name()

	// 3. Generate
	evidence := retrieved.Hits
	if len(evidence) > EvidencePerAnswer {
		evidence = evidence[:EvidencePerAnswer]
	}
	generateCtx, cancel := context.WithTimeout(ctx, t.cfg.GenerationTimeout)
	answer, err := r.Respond(generateCtx, port.RoleRequest{
		Query:    clean.Text,
		Evidence: evidence,
		History:  domain.LastTurns(session.history, HistoryPerAnswer),
	})
	cancel()
	if err != nil {
		if !errors.Is(err, port.ErrGeneration) {
			err = fmt.Errorf("%w: %w", port.ErrGeneration, err)
		}
		slog.Error("generation failed", "session_id", sessionID, "role", decision.Role, "error", err)
		return nil, err
	}
	reply.Answer = answer.Text

	// 4. Reflect
	useReflection := t.cfg.Reflection
	if opts.Reflect != nil {
		useReflection = *opts.Reflect
	}
	userTurn := domain.NewTurn(domain.TurnUser, clean.Text, nil)
	if useReflection {
		critiqueCtx, cancel := context.WithTimeout(ctx, t.cfg.GenerationTimeout)
		recent := append(domain.LastTurns(session.history, ReflectionHistoryTurns), userTurn)
		verdict := t.critic.Critique(critiqueCtx, clean.Text, answer.Text, r.Name(), recent)
		cancel()

		reply.Reflection = &verdict
		if verdict.Error != "" {
			reply.Warnings = append(reply.Warnings, "Answer quality check was skipped.")
		}
		if final := verdict.Apply(answer.Text); final != answer.Text {
			reply.OriginalAnswer = answer.Text
			reply.Answer = final
			reply.Rewritten = true
		}
	}

	// 5. Record
	assistantTurn := domain.NewTurn(domain.TurnAssistant, reply.Answer, map[string]string{
		"role":            string(decision.Role),
		"rag_used":        strconv.FormatBool(retrieved.Success),
		"reflection_used": strconv.FormatBool(useReflection),
	})
	session.appendTurns(userTurn, assistantTurn)
	t.record(ctx, session, decision.Role, clean.Text, userTurn, assistantTurn)

	return reply, nil
}

// record persists the turn and learning signals. Store failures are logged only.
func (t *TutorService) record(ctx context.Context, s *Session, roleID domain.RoleID, query string, turns ...domain.ConversationTurn) {
	logErr := func(what string, err error) {
		if err != nil {
			slog.Error("failed to record progress", "what", what, "session_id", s.ID, "error", err)
		}
	}

	for _, turn := range turns {
		logErr("message", t.store.AppendMessage(ctx, s.UserID, s.ID, turn))
	}
	logErr("query count", t.store.IncrementQueryCount(ctx, s.UserID))

	switch roleID {
	case domain.RoleVocabulary:
		for _, word := range VocabularyCandidates(query) {
			logErr("vocabulary", t.store.AddVocabulary(ctx, s.UserID, word))
		}
	case domain.RoleGrammar:
		if topic := GrammarTopic(query); topic != "" {
			logErr("grammar topic", t.store.AddGrammarTopic(ctx, s.UserID, topic, domain.InitialGrammarMastery))
		}
	}

	details := fmt.Sprintf(`{"role":%q}`, roleID)
	logErr("audit", t.store.WriteAudit(s.UserID, domain.AuditActionChat, "session", s.ID, details, "", ""))
}
