package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/adapter/role"
	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/google/uuid"
)

// DefaultSessionHistory is the number of turns a session keeps in memory.
const DefaultSessionHistory = 20

// Session is one learner conversation. Its lock is held for a whole turn, so
// turns of the same session never interleave.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	mu           sync.Mutex
	history      []domain.ConversationTurn
	historyLimit int
	roles        *port.RoleRegistry
}

// History returns a copy of the in-memory history, oldest first.
func (s *Session) History() []domain.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.LastTurns(s.history, len(s.history))
	if out == nil {
		out = []domain.ConversationTurn{}
	}
	return out
}

// Roles returns the session's own role instances.
func (s *Session) Roles() *port.RoleRegistry {
	return s.roles
}

// appendTurns adds turns and drops the oldest beyond the limit. Callers hold mu.
func (s *Session) appendTurns(turns ...domain.ConversationTurn) {
	s.history = append(s.history, turns...)
	if len(s.history) > s.historyLimit {
		s.history = domain.LastTurns(s.history, s.historyLimit)
	}
}

// SessionInfo is the listing view of a session.
type SessionInfo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     int       `json:"turns"`
}

// SessionManager owns the live sessions.
type SessionManager struct {
	gen          port.Generator
	store        port.ProgressStore
	historyLimit int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager whose sessions generate with gen.
func NewSessionManager(gen port.Generator, store port.ProgressStore, historyLimit int) *SessionManager {
	if historyLimit <= 0 {
		historyLimit = DefaultSessionHistory
	}
	return &SessionManager{
		gen:          gen,
		store:        store,
		historyLimit: historyLimit,
		sessions:     make(map[string]*Session),
	}
}

// Open starts a session for userID and counts it in the learner's progress.
func (m *SessionManager) Open(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		userID = "anonymous"
	}
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		CreatedAt:    time.Now().UTC(),
		historyLimit: m.historyLimit,
		roles:        role.NewRegistry(m.gen),
	}

	if err := m.store.RecordSession(ctx, userID); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.audit(userID, domain.AuditActionSessionOpen, s.ID)
	slog.Info("session opened", "session_id", s.ID, "user_id", userID)
	return s, nil
}

// Get returns the live session with id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrSessionNotFound, id)
	}
	return s, nil
}

// Close drops the session's in-memory state. The message log stays in the store.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", port.ErrSessionNotFound, id)
	}

	m.audit(s.UserID, domain.AuditActionSessionClose, id)
	slog.Info("session closed", "session_id", id, "user_id", s.UserID)
	return nil
}

// List returns the live sessions, oldest first.
func (m *SessionManager) List() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		s.mu.Lock()
		infos[i] = SessionInfo{ID: s.ID, UserID: s.UserID, CreatedAt: s.CreatedAt, Turns: len(s.history)}
		s.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

func (m *SessionManager) audit(userID, action, sessionID string) {
	if err := m.store.WriteAudit(userID, action, "session", sessionID, "{}", "", ""); err != nil {
		slog.Error("failed to write audit log", "action", action, "error", err)
	}
}
