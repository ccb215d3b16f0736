package service

import (
	"context"
	"errors"
	"testing"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hitIDs(hits []domain.SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Document.ID
	}
	return out
}

func TestRetrieve_OverfetchesAndReranks(t *testing.T) {
	idx := &fakeIndex{neighbors: []domain.Neighbor{
		neighbor("close", "unrelated text", 0.10),
		neighbor("keyword", "Resilient: able to recover quickly", 0.15),
		neighbor("tie-a", "nothing", 0.30),
		neighbor("tie-b", "nothing", 0.30),
	}}
	svc := NewRetrievalService(idx)

	res := svc.Retrieve(context.Background(), "resilient person", 3)
	require.True(t, res.Success)
	require.NoError(t, res.Err)
	assert.Equal(t, 6, idx.lastK)
	assert.Equal(t, []string{"keyword", "close", "tie-a"}, hitIDs(res.Hits))

	top := res.Hits[0]
	assert.Equal(t, 1, top.KeywordMatchCount)
	assert.InDelta(t, 0.85, top.SimilarityScore, 1e-9)
	assert.InDelta(t, 0.95, top.CombinedScore, 1e-9)
}

func TestRetrieve_NeverMoreThanK(t *testing.T) {
	idx := &fakeIndex{neighbors: []domain.Neighbor{
		neighbor("a", "a", 0.1), neighbor("b", "b", 0.2), neighbor("c", "c", 0.3),
	}}
	svc := NewRetrievalService(idx)

	for k := 0; k <= 4; k++ {
		res := svc.Retrieve(context.Background(), "q", k)
		assert.True(t, res.Success)
		assert.LessOrEqual(t, len(res.Hits), k)
	}
}

func TestRetrieve_IndexFailure(t *testing.T) {
	svc := NewRetrievalService(&fakeIndex{err: errors.New("connection refused")})

	res := svc.Retrieve(context.Background(), "q", 3)
	assert.False(t, res.Success)
	assert.Empty(t, res.Hits)
	assert.ErrorIs(t, res.Err, port.ErrRetrieval)
}

func TestRetrieve_EmptyIndexIsSuccess(t *testing.T) {
	res := NewRetrievalService(&fakeIndex{}).Retrieve(context.Background(), "q", 3)
	assert.True(t, res.Success)
	assert.Empty(t, res.Hits)
}

func TestSearch_PassesKindAndCustomReranking(t *testing.T) {
	idx := &fakeIndex{neighbors: []domain.Neighbor{neighbor("a", "a", 0.1)}}
	svc := NewRetrievalService(idx).WithReranking(3, 0.5)

	svc.Search(context.Background(), "q", 2, domain.SourceGrammar)
	assert.Equal(t, 6, idx.lastK)
	assert.Equal(t, domain.SourceGrammar, idx.lastKind)
}

func TestRerank_RepeatedQueryWordsCountOnce(t *testing.T) {
	hits := Rerank("tense tense TENSE", []domain.Neighbor{neighbor("a", "Present tense", 0.5)}, 1, DefaultKeywordBoost)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].KeywordMatchCount)
}
