package store

import (
	"context"
	"sync"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

// MemoryStore is a process-local progress store. Data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	progress map[string]*domain.Progress
	messages map[string][]domain.ConversationTurn
	audit    []domain.AuditLog
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress: make(map[string]*domain.Progress),
		messages: make(map[string][]domain.ConversationTurn),
	}
}

func messageKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}

// learner returns the record for userID, creating it. Callers hold the write lock.
func (s *MemoryStore) learner(userID string) *domain.Progress {
	p, ok := s.progress[userID]
	if !ok {
		p = domain.NewProgress(userID)
		s.progress[userID] = p
	}
	p.LastActive = time.Now().UTC()
	return p
}

// --- Messages ---

func (s *MemoryStore) AppendMessage(_ context.Context, userID, sessionID string, turn domain.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := messageKey(userID, sessionID)
	s.messages[key] = append(s.messages[key], turn)
	return nil
}

func (s *MemoryStore) Messages(_ context.Context, userID, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.messages[messageKey(userID, sessionID)]
	if limit <= 0 || limit > len(turns) {
		limit = len(turns)
	}
	out := domain.LastTurns(turns, limit)
	if out == nil {
		out = []domain.ConversationTurn{}
	}
	return out, nil
}

// --- Counters ---

func (s *MemoryStore) IncrementQueryCount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learner(userID).TotalQueries++
	return nil
}

func (s *MemoryStore) RecordSession(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learner(userID).TotalSessions++
	return nil
}

// --- Learning records ---

func (s *MemoryStore) AddVocabulary(_ context.Context, userID, word string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.learner(userID)
	now := time.Now().UTC()
	item, ok := p.Vocabulary[word]
	if ok {
		item.TimesReviewed++
		item.LastReviewed = now
	} else {
		item = domain.VocabularyItem{Word: word, FirstSeen: now, LastReviewed: now, TimesReviewed: 1}
	}
	p.Vocabulary[word] = item
	return nil
}

func (s *MemoryStore) AddGrammarTopic(_ context.Context, userID, topic string, initialMastery float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.learner(userID)
	now := time.Now().UTC()
	g, ok := p.Grammar[topic]
	if ok {
		g.Mastery = domain.NextMastery(g.Mastery)
		g.TimesStudied++
	} else {
		g = domain.GrammarTopic{Topic: topic, Mastery: initialMastery, TimesStudied: 1}
	}
	g.LastStudied = now
	p.Grammar[topic] = g
	return nil
}

func (s *MemoryStore) RecordExercise(_ context.Context, userID string, result domain.ExerciseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.learner(userID)
	p.ExercisesCompleted++
	p.ExerciseScores[result.Topic] = domain.AppendBounded(p.ExerciseScores[result.Topic], result.Score, domain.ExerciseHistoryLimit)
	return nil
}

func (s *MemoryStore) RecordMistake(_ context.Context, userID string, mistake domain.Mistake) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.learner(userID)
	p.Mistakes[mistake.Type] = domain.AppendBounded(p.Mistakes[mistake.Type], mistake, domain.MistakeHistoryLimit)
	return nil
}

// GetProgress returns a deep copy of the user's record.
func (s *MemoryStore) GetProgress(_ context.Context, userID string) (*domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[userID]
	if !ok {
		return domain.NewProgress(userID), nil
	}

	out := *p
	out.Vocabulary = make(map[string]domain.VocabularyItem, len(p.Vocabulary))
	for k, v := range p.Vocabulary {
		out.Vocabulary[k] = v
	}
	out.Grammar = make(map[string]domain.GrammarTopic, len(p.Grammar))
	for k, v := range p.Grammar {
		out.Grammar[k] = v
	}
	out.ExerciseScores = make(map[string][]float64, len(p.ExerciseScores))
	for k, v := range p.ExerciseScores {
		out.ExerciseScores[k] = append([]float64(nil), v...)
	}
	out.Mistakes = make(map[string][]domain.Mistake, len(p.Mistakes))
	for k, v := range p.Mistakes {
		out.Mistakes[k] = append([]domain.Mistake(nil), v...)
	}
	return &out, nil
}

// --- Audit Logs ---

func (s *MemoryStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, domain.AuditLog{
		ID:         int64(len(s.audit) + 1),
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

// ListAuditLogs returns the newest entries first.
func (s *MemoryStore) ListAuditLogs(_ context.Context, limit int, action string) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := []domain.AuditLog{}
	for i := len(s.audit) - 1; i >= 0; i-- {
		if action != "" && s.audit[i].Action != action {
			continue
		}
		logs = append(logs, s.audit[i])
		if limit > 0 && len(logs) == limit {
			break
		}
	}
	return logs, nil
}
