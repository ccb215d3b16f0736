package service

import (
	"context"
	"testing"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/adapter/store"
	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressService(t *testing.T) {
	ctx := context.Background()
	progress := store.NewMemoryStore()
	svc := NewProgressService(progress, 0.5)
	svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	require.NoError(t, progress.AddVocabulary(ctx, "u1", "resilient"))
	require.NoError(t, progress.AddGrammarTopic(ctx, "u1", "articles", domain.InitialGrammarMastery))
	require.NoError(t, svc.RecordExercise(ctx, "u1", domain.ExerciseResult{ExerciseID: "e1", Topic: "articles", Score: 0.55}))
	require.NoError(t, svc.RecordMistake(ctx, "u1", domain.Mistake{Type: "tense", Example: "I goed"}))

	summary, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.VocabularyLearned)
	assert.Equal(t, 1, summary.ExercisesCompleted)
	assert.Empty(t, summary.WeakTopics, "0.55 is above the 0.5 threshold")

	recs, err := svc.Recommendations(ctx, "u1")
	require.NoError(t, err)
	types := make([]string, len(recs))
	for i, r := range recs {
		types[i] = r.Type
	}
	assert.Equal(t, []string{domain.RecommendVocabularyReview, domain.RecommendGrammarPractice, domain.RecommendExercisePractice}, types)
}

func TestProgressService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewProgressService(store.NewMemoryStore(), 0)

	assert.ErrorIs(t, svc.RecordExercise(ctx, "u1", domain.ExerciseResult{Topic: "articles", Score: 1.5}), port.ErrInvalidRecord)
	assert.Error(t, svc.RecordExercise(ctx, "u1", domain.ExerciseResult{Score: 0.5}))
	assert.Error(t, svc.RecordMistake(ctx, "u1", domain.Mistake{Type: "tense"}))
}
