package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises port.ProgressStore against one backend. newStore must
// return an empty store for every call.
func runStoreContract(t *testing.T, newStore func(t *testing.T) port.ProgressStore) {
	ctx := context.Background()

	t.Run("unknown user has an empty record", func(t *testing.T) {
		s := newStore(t)
		p, err := s.GetProgress(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, "ghost", p.UserID)
		assert.Zero(t, p.TotalQueries)
		assert.Empty(t, p.Vocabulary)
	})

	t.Run("counters", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.RecordSession(ctx, "u1"))
		for i := 0; i < 3; i++ {
			require.NoError(t, s.IncrementQueryCount(ctx, "u1"))
		}
		p, err := s.GetProgress(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, p.TotalQueries)
		assert.Equal(t, 1, p.TotalSessions)
	})

	t.Run("vocabulary re-add increments the review counter", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AddVocabulary(ctx, "u1", "resilient"))
		require.NoError(t, s.AddVocabulary(ctx, "u1", "resilient"))
		require.NoError(t, s.AddVocabulary(ctx, "u1", "brave"))

		p, err := s.GetProgress(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, p.Vocabulary, 2)
		assert.Equal(t, 2, p.Vocabulary["resilient"].TimesReviewed)
		assert.Equal(t, 1, p.Vocabulary["brave"].TimesReviewed)
	})

	t.Run("grammar mastery grows by a step and caps at one", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AddGrammarTopic(ctx, "u1", "passive voice", domain.InitialGrammarMastery))
		p, err := s.GetProgress(ctx, "u1")
		require.NoError(t, err)
		assert.InDelta(t, 0.6, p.Grammar["passive voice"].Mastery, 1e-9)

		require.NoError(t, s.AddGrammarTopic(ctx, "u1", "passive voice", domain.InitialGrammarMastery))
		p, err = s.GetProgress(ctx, "u1")
		require.NoError(t, err)
		assert.InDelta(t, 0.7, p.Grammar["passive voice"].Mastery, 1e-9)
		assert.Equal(t, 2, p.Grammar["passive voice"].TimesStudied)

		for i := 0; i < 10; i++ {
			require.NoError(t, s.AddGrammarTopic(ctx, "u1", "passive voice", domain.InitialGrammarMastery))
		}
		p, err = s.GetProgress(ctx, "u1")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, p.Grammar["passive voice"].Mastery, 1e-9)
	})

	t.Run("exercise scores keep the last ten per topic", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 12; i++ {
			require.NoError(t, s.RecordExercise(ctx, "u1", domain.ExerciseResult{
				ExerciseID: fmt.Sprintf("ex-%d", i),
				Topic:      "articles",
				Score:      float64(i) / 20,
			}))
		}
		require.NoError(t, s.RecordExercise(ctx, "u1", domain.ExerciseResult{ExerciseID: "x", Topic: "tenses", Score: 0.9}))

		p, err := s.GetProgress(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 13, p.ExercisesCompleted)
		require.Len(t, p.ExerciseScores["articles"], domain.ExerciseHistoryLimit)
		assert.InDelta(t, 0.1, p.ExerciseScores["articles"][0], 1e-9)
		assert.InDelta(t, 0.55, p.ExerciseScores["articles"][9], 1e-9)
		assert.Equal(t, []string{"articles"}, p.WeakTopics(domain.WeakTopicThreshold))
	})

	t.Run("mistakes keep the last five per type", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 7; i++ {
			require.NoError(t, s.RecordMistake(ctx, "u1", domain.Mistake{
				Type:    "subject-verb agreement",
				Example: fmt.Sprintf("he go %d", i),
			}))
		}
		p, err := s.GetProgress(ctx, "u1")
		require.NoError(t, err)
		examples := p.Mistakes["subject-verb agreement"]
		require.Len(t, examples, domain.MistakeHistoryLimit)
		assert.Equal(t, "he go 2", examples[0].Example)
		assert.Equal(t, "he go 6", examples[4].Example)
	})

	t.Run("message log is per session and oldest first", func(t *testing.T) {
		s := newStore(t)
		base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		for i := 0; i < 4; i++ {
			turn := domain.ConversationTurn{
				Role:      domain.TurnUser,
				Content:   fmt.Sprintf("message %d", i),
				Timestamp: base.Add(time.Duration(i) * time.Second),
				Metadata:  map[string]string{"n": fmt.Sprint(i)},
			}
			require.NoError(t, s.AppendMessage(ctx, "u1", "s1", turn))
		}
		require.NoError(t, s.AppendMessage(ctx, "u1", "s2", domain.NewTurn(domain.TurnUser, "other", nil)))

		all, err := s.Messages(ctx, "u1", "s1", 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "message 0", all[0].Content)
		assert.Equal(t, map[string]string{"n": "0"}, all[0].Metadata)
		assert.True(t, base.Equal(all[0].Timestamp))

		recent, err := s.Messages(ctx, "u1", "s1", 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "message 2", recent[0].Content)
		assert.Equal(t, "message 3", recent[1].Content)

		none, err := s.Messages(ctx, "u1", "missing", 5)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("audit logs newest first with action filter", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.WriteAudit("u1", domain.AuditActionHTTPRequest, "api", "/a", `{"status":200}`, "127.0.0.1", "test"))
		require.NoError(t, s.WriteAudit("u1", domain.AuditActionChat, "session", "s1", `{}`, "127.0.0.1", "test"))
		require.NoError(t, s.WriteAudit("u2", domain.AuditActionHTTPRequest, "api", "/b", `{}`, "127.0.0.1", "test"))

		logs, err := s.ListAuditLogs(ctx, 10, domain.AuditActionHTTPRequest)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "/b", logs[0].ResourceID)
		assert.Equal(t, "/a", logs[1].ResourceID)

		limited, err := s.ListAuditLogs(ctx, 1, "")
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, "/b", limited[0].ResourceID)
	})
}
