package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
)

// ProgressService answers questions about a learner's progress.
type ProgressService struct {
	store         port.ProgressStore
	weakThreshold float64
	now           func() time.Time
}

// NewProgressService creates a progress service. A non-positive threshold uses the default.
func NewProgressService(store port.ProgressStore, weakThreshold float64) *ProgressService {
	if weakThreshold <= 0 {
		weakThreshold = domain.WeakTopicThreshold
	}
	return &ProgressService{store: store, weakThreshold: weakThreshold, now: time.Now}
}

// Progress returns the full record.
func (s *ProgressService) Progress(ctx context.Context, userID string) (*domain.Progress, error) {
	p, err := s.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// Summary returns the condensed view, with weak topics at the configured threshold.
func (s *ProgressService) Summary(ctx context.Context, userID string) (domain.Summary, error) {
	p, err := s.Progress(ctx, userID)
	if err != nil {
		return domain.Summary{}, err
	}
	summary := p.Summary()
	summary.WeakTopics = p.WeakTopics(s.weakThreshold)
	return summary, nil
}

// Recommendations suggests what the learner should study next.
func (s *ProgressService) Recommendations(ctx context.Context, userID string) ([]domain.Recommendation, error) {
	p, err := s.Progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.Recommendations(s.now().UTC()), nil
}

// RecordExercise stores a scored attempt. Scores must be within [0, 1].
func (s *ProgressService) RecordExercise(ctx context.Context, userID string, result domain.ExerciseResult) error {
	if strings.TrimSpace(result.Topic) == "" {
		return fmt.Errorf("%w: exercise topic is required", port.ErrInvalidRecord)
	}
	if result.Score < 0 || result.Score > 1 {
		return fmt.Errorf("%w: exercise score %g out of range [0, 1]", port.ErrInvalidRecord, result.Score)
	}
	if result.CompletedAt.IsZero() {
		result.CompletedAt = s.now().UTC()
	}
	if err := s.store.RecordExercise(ctx, userID, result); err != nil {
		return fmt.Errorf("record exercise: %w", err)
	}
	return nil
}

// RecordMistake stores an example of a mistake type.
func (s *ProgressService) RecordMistake(ctx context.Context, userID string, mistake domain.Mistake) error {
	if strings.TrimSpace(mistake.Type) == "" || strings.TrimSpace(mistake.Example) == "" {
		return fmt.Errorf("%w: mistake type and example are required", port.ErrInvalidRecord)
	}
	if mistake.RecordedAt.IsZero() {
		mistake.RecordedAt = s.now().UTC()
	}
	if err := s.store.RecordMistake(ctx, userID, mistake); err != nil {
		return fmt.Errorf("record mistake: %w", err)
	}
	return nil
}

// History returns the persisted message log of a session.
func (s *ProgressService) History(ctx context.Context, userID, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	turns, err := s.store.Messages(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return turns, nil
}
