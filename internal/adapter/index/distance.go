// Package index provides knowledge index adapters implementing port.KnowledgeIndex.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
)

// embedBatchSize bounds a single EmbedBatch call during rebuilds.
const embedBatchSize = 64

// cosineDistance returns 1 - cosine similarity. Mismatched or zero vectors are at distance 1.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// validate checks the invariants every stored document must hold.
func validate(doc domain.Document) error {
	switch {
	case doc.ID == "":
		return fmt.Errorf("%w: missing id", port.ErrInvalidDocument)
	case doc.Text == "":
		return fmt.Errorf("%w: %s has empty text", port.ErrInvalidDocument, doc.ID)
	case !doc.SourceKind.Valid():
		return fmt.Errorf("%w: %s has unknown source kind %q", port.ErrInvalidDocument, doc.ID, doc.SourceKind)
	}
	return nil
}

// dedupe drops invalid documents and collapses repeated IDs. The last version wins
// but keeps the position of the first occurrence.
func dedupe(docs []domain.Document) ([]domain.Document, []error) {
	out := make([]domain.Document, 0, len(docs))
	pos := make(map[string]int, len(docs))
	var errs []error
	for _, d := range docs {
		if err := validate(d); err != nil {
			errs = append(errs, err)
			continue
		}
		if i, ok := pos[d.ID]; ok {
			out[i] = d
			continue
		}
		pos[d.ID] = len(out)
		out = append(out, d)
	}
	return out, errs
}

// embedAll embeds document texts in bounded batches.
func embedAll(ctx context.Context, embedder port.Embedder, docs []domain.Document) ([][]float32, error) {
	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		texts := make([]string, end-start)
		for i, d := range docs[start:end] {
			texts[i] = d.Text
		}
		batch, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed documents %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed documents %d-%d: got %d vectors", start, end, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// nearest ranks candidates by distance, keeping input order on ties, and cuts to k.
func nearest(candidates []domain.Neighbor, k int) []domain.Neighbor {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}
