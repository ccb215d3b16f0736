package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
)

// Reranking defaults.
const (
	DefaultOverfetchFactor = 2
	DefaultKeywordBoost    = 0.1
)

// RetrievalResult is the outcome of a retrieval. Success=false implies no hits.
type RetrievalResult struct {
	Success bool               `json:"success"`
	Hits    []domain.SearchHit `json:"hits"`
	Err     error              `json:"-"`
}

// RetrievalService over-fetches neighbours from the index and reranks them with
// a keyword-overlap boost.
type RetrievalService struct {
	index           port.KnowledgeIndex
	overfetchFactor int
	keywordBoost    float64
}

// NewRetrievalService creates a retrieval service with the default reranking parameters.
func NewRetrievalService(index port.KnowledgeIndex) *RetrievalService {
	return &RetrievalService{
		index:           index,
		overfetchFactor: DefaultOverfetchFactor,
		keywordBoost:    DefaultKeywordBoost,
	}
}

// WithReranking overrides the over-fetch factor and keyword boost. Non-positive
// factors and negative boosts are ignored.
func (s *RetrievalService) WithReranking(overfetchFactor int, keywordBoost float64) *RetrievalService {
	if overfetchFactor > 0 {
		s.overfetchFactor = overfetchFactor
	}
	if keywordBoost >= 0 {
		s.keywordBoost = keywordBoost
	}
	return s
}

// Retrieve returns at most k reranked hits across every source kind.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int) RetrievalResult {
	return s.Search(ctx, query, k, "")
}

// Search is Retrieve restricted to one source kind. An empty kind searches everything.
// Index failures are reported in the result, never returned.
func (s *RetrievalService) Search(ctx context.Context, query string, k int, kind domain.SourceKind) RetrievalResult {
	if k <= 0 {
		return RetrievalResult{Success: true, Hits: []domain.SearchHit{}}
	}

	neighbors, err := s.index.Query(ctx, query, k*s.overfetchFactor, kind)
	if err != nil {
		slog.Warn("retrieval failed", "error", err)
		return RetrievalResult{Hits: []domain.SearchHit{}, Err: fmt.Errorf("%w: %w", port.ErrRetrieval, err)}
	}

	return RetrievalResult{Success: true, Hits: Rerank(query, neighbors, k, s.keywordBoost)}
}

// Rerank scores neighbours by similarity plus boost per query keyword found in
// the document, sorts them stably by combined score and keeps the first k.
func Rerank(query string, neighbors []domain.Neighbor, k int, boost float64) []domain.SearchHit {
	keywords := queryKeywords(query)

	hits := make([]domain.SearchHit, len(neighbors))
	for i, n := range neighbors {
		body := strings.ToLower(n.Document.Text)
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(body, kw) {
				matches++
			}
		}
		similarity := 1 - n.Distance
		hits[i] = domain.SearchHit{
			Document:          n.Document,
			SimilarityScore:   similarity,
			KeywordMatchCount: matches,
			CombinedScore:     similarity + boost*float64(matches),
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].CombinedScore > hits[j].CombinedScore
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// queryKeywords returns the distinct lowercase whitespace-separated words of query.
func queryKeywords(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
