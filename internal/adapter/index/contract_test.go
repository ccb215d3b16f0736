package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder maps known texts to fixed vectors; anything else lands on the z axis.
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func doc(id, text string, kind domain.SourceKind) domain.Document {
	return domain.Document{ID: id, Text: text, SourceKind: kind, FileOrigin: id + ".json", Metadata: map[string]string{"source": string(kind)}}
}

func ids(neighbors []domain.Neighbor) []string {
	out := make([]string, len(neighbors))
	for i, n := range neighbors {
		out[i] = n.Document.ID
	}
	return out
}

// runIndexContract exercises the port.KnowledgeIndex contract against one backend.
func runIndexContract(t *testing.T, newIndex func(t *testing.T, e port.Embedder) port.KnowledgeIndex) {
	ctx := context.Background()
	vectors := map[string][]float32{
		"resilient: able to recover": {1, 0, 0},
		"passive voice rules":        {0, 1, 0},
		"quiz on tenses":             {0.7, 0.7, 0},
		"resilient":                  {1, 0, 0},
		"grammar":                    {0, 1, 0},
	}

	t.Run("empty index returns no neighbors", func(t *testing.T) {
		idx := newIndex(t, &stubEmbedder{vectors: vectors})
		got, err := idx.Query(ctx, "resilient", 5, "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ingest is idempotent per id", func(t *testing.T) {
		idx := newIndex(t, &stubEmbedder{vectors: vectors})
		require.NoError(t, idx.Ingest(ctx, doc("v1", "passive voice rules", domain.SourceVocabulary)))
		require.NoError(t, idx.Ingest(ctx, doc("v1", "resilient: able to recover", domain.SourceVocabulary)))

		got, err := idx.Query(ctx, "resilient", 5, "")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "resilient: able to recover", got[0].Document.Text)
		assert.InDelta(t, 0, got[0].Distance, 1e-6)

		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
	})

	t.Run("rejects invalid documents", func(t *testing.T) {
		idx := newIndex(t, &stubEmbedder{vectors: vectors})
		err := idx.Ingest(ctx, domain.Document{ID: "x", SourceKind: domain.SourceGrammar})
		assert.True(t, errors.Is(err, port.ErrInvalidDocument))
		err = idx.Ingest(ctx, domain.Document{ID: "y", Text: "t", SourceKind: "poetry"})
		assert.True(t, errors.Is(err, port.ErrInvalidDocument))
	})

	t.Run("ranks by distance and breaks ties by insertion order", func(t *testing.T) {
		idx := newIndex(t, &stubEmbedder{vectors: vectors})
		require.NoError(t, idx.Ingest(ctx, doc("g2", "unknown text b", domain.SourceGrammar)))
		require.NoError(t, idx.Ingest(ctx, doc("v1", "resilient: able to recover", domain.SourceVocabulary)))
		require.NoError(t, idx.Ingest(ctx, doc("g1", "unknown text a", domain.SourceGrammar)))
		require.NoError(t, idx.Ingest(ctx, doc("e1", "quiz on tenses", domain.SourceExercise)))

		got, err := idx.Query(ctx, "resilient", 10, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1", "e1", "g2", "g1"}, ids(got))

		limited, err := idx.Query(ctx, "resilient", 2, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1", "e1"}, ids(limited))
	})

	t.Run("filters by source kind", func(t *testing.T) {
		idx := newIndex(t, &stubEmbedder{vectors: vectors})
		require.NoError(t, idx.Rebuild(ctx, []domain.Document{
			doc("v1", "resilient: able to recover", domain.SourceVocabulary),
			doc("g1", "passive voice rules", domain.SourceGrammar),
			doc("e1", "quiz on tenses", domain.SourceExercise),
		}))

		got, err := idx.Query(ctx, "resilient", 10, domain.SourceGrammar)
		require.NoError(t, err)
		assert.Equal(t, []string{"g1"}, ids(got))
	})

	t.Run("rebuild swaps content and invalidates stats", func(t *testing.T) {
		idx := newIndex(t, &stubEmbedder{vectors: vectors})
		require.NoError(t, idx.Ingest(ctx, doc("old", "passive voice rules", domain.SourceGrammar)))

		before, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, before.ByKind[domain.SourceGrammar])

		require.NoError(t, idx.Rebuild(ctx, []domain.Document{
			doc("v1", "resilient: able to recover", domain.SourceVocabulary),
			doc("v1", "resilient: able to recover", domain.SourceVocabulary),
			doc("e1", "quiz on tenses", domain.SourceExercise),
			{ID: "bad", SourceKind: domain.SourceExercise},
		}))

		after, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, after.Total)
		assert.Equal(t, 0, after.ByKind[domain.SourceGrammar])
		assert.Equal(t, 1, after.ByKind[domain.SourceVocabulary])
		assert.Equal(t, 1, after.ByKind[domain.SourceExercise])

		got, err := idx.Query(ctx, "grammar", 10, "")
		require.NoError(t, err)
		assert.NotContains(t, ids(got), "old")
	})

	t.Run("stats are cached until the next write", func(t *testing.T) {
		idx := newIndex(t, &stubEmbedder{vectors: vectors})
		require.NoError(t, idx.Ingest(ctx, doc("v1", "resilient: able to recover", domain.SourceVocabulary)))
		first, err := idx.Stats(ctx)
		require.NoError(t, err)
		second, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.Computed, second.Computed)

		require.NoError(t, idx.Ingest(ctx, doc("g1", "passive voice rules", domain.SourceGrammar)))
		third, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, third.Total)
	})

	t.Run("concurrent queries during rebuild", func(t *testing.T) {
		idx := newIndex(t, &stubEmbedder{vectors: vectors})
		docs := []domain.Document{
			doc("v1", "resilient: able to recover", domain.SourceVocabulary),
			doc("g1", "passive voice rules", domain.SourceGrammar),
		}
		require.NoError(t, idx.Rebuild(ctx, docs))

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := idx.Query(ctx, "resilient", 2, "")
				if err != nil {
					errs <- err
					return
				}
				if len(got) != 2 {
					errs <- errors.New("partial index observed")
				}
			}()
		}
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := idx.Rebuild(ctx, docs); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}
