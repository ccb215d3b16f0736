package port

import (
	"context"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

// KnowledgeIndex is an embedding-backed document store.
//
// Queries may run concurrently. Rebuild replaces the whole content and is
// exclusive with respect to queries: readers see either the old or the new
// content, never a mix.
type KnowledgeIndex interface {
	// Ingest adds or overwrites a single document by ID.
	Ingest(ctx context.Context, doc domain.Document) error

	// Query returns up to k nearest documents, closest first, ties in insertion
	// order. An empty kind disables filtering. An empty index yields no error.
	Query(ctx context.Context, text string, k int, kind domain.SourceKind) ([]domain.Neighbor, error)

	// Rebuild swaps the index content for docs and invalidates cached stats.
	Rebuild(ctx context.Context, docs []domain.Document) error

	// Stats returns per-kind document counts, cached until the next write.
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// CorpusLoader reads documents from a corpus root grouped by source kind.
type CorpusLoader interface {
	Load(ctx context.Context, root string) ([]domain.Document, error)
}

// CorpusOperation is the kind of change observed on a corpus file.
type CorpusOperation int

const (
	CorpusFileCreated CorpusOperation = iota
	CorpusFileModified
	CorpusFileDeleted
)

// CorpusEvent is a file change under the corpus root.
type CorpusEvent struct {
	Path      string
	Operation CorpusOperation
}
