package port

import (
	"context"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

// ProgressStore persists the message log and per-user learning records.
type ProgressStore interface {
	// AppendMessage adds a turn to the session's append-only log.
	AppendMessage(ctx context.Context, userID, sessionID string, turn domain.ConversationTurn) error

	// Messages returns up to limit most recent turns of a session, oldest first.
	Messages(ctx context.Context, userID, sessionID string, limit int) ([]domain.ConversationTurn, error)

	IncrementQueryCount(ctx context.Context, userID string) error
	RecordSession(ctx context.Context, userID string) error

	// AddVocabulary inserts a word or bumps its review counter.
	AddVocabulary(ctx context.Context, userID, word string) error

	// AddGrammarTopic inserts a topic at initialMastery or applies domain.NextMastery.
	AddGrammarTopic(ctx context.Context, userID, topic string, initialMastery float64) error

	RecordExercise(ctx context.Context, userID string, result domain.ExerciseResult) error
	RecordMistake(ctx context.Context, userID string, mistake domain.Mistake) error

	// GetProgress returns the user's record, empty if the user is unknown.
	GetProgress(ctx context.Context, userID string) (*domain.Progress, error)

	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}
