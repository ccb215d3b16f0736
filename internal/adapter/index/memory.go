package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
)

// MemoryIndex is an in-process knowledge index.
// Queries share a read lock; Rebuild embeds off-lock and swaps the whole state.
type MemoryIndex struct {
	embedder port.Embedder

	mu    sync.RWMutex
	state *memoryState
}

type memoryState struct {
	entries []memoryEntry // insertion order
	pos     map[string]int
	stats   *domain.IndexStats
}

type memoryEntry struct {
	doc    domain.Document
	vector []float32
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(embedder port.Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
		state:    &memoryState{pos: make(map[string]int)},
	}
}

// Ingest adds doc or overwrites the document with the same ID in place.
func (m *MemoryIndex) Ingest(ctx context.Context, doc domain.Document) error {
	if err := validate(doc); err != nil {
		return err
	}
	vector, err := m.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", doc.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{doc: doc, vector: vector}
	if i, ok := m.state.pos[doc.ID]; ok {
		m.state.entries[i] = entry
	} else {
		m.state.pos[doc.ID] = len(m.state.entries)
		m.state.entries = append(m.state.entries, entry)
	}
	m.state.stats = nil
	return nil
}

// Query returns the k nearest documents, optionally restricted to kind.
func (m *MemoryIndex) Query(ctx context.Context, text string, k int, kind domain.SourceKind) ([]domain.Neighbor, error) {
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}

	m.mu.RLock()
	empty := len(m.state.entries) == 0
	m.mu.RUnlock()
	if empty {
		return []domain.Neighbor{}, nil
	}

	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]domain.Neighbor, 0, len(m.state.entries))
	for _, e := range m.state.entries {
		if kind != "" && e.doc.SourceKind != kind {
			continue
		}
		candidates = append(candidates, domain.Neighbor{
			Document: e.doc,
			Distance: cosineDistance(vector, e.vector),
		})
	}
	return nearest(candidates, k), nil
}

// Rebuild replaces the content with docs. Invalid documents are skipped and logged.
func (m *MemoryIndex) Rebuild(ctx context.Context, docs []domain.Document) error {
	clean, errs := dedupe(docs)
	for _, err := range errs {
		slog.Warn("skipping document", "error", err)
	}

	vectors, err := embedAll(ctx, m.embedder, clean)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	next := &memoryState{
		entries: make([]memoryEntry, len(clean)),
		pos:     make(map[string]int, len(clean)),
	}
	for i, d := range clean {
		next.entries[i] = memoryEntry{doc: d, vector: vectors[i]}
		next.pos[d.ID] = i
	}

	m.mu.Lock()
	m.state = next
	m.mu.Unlock()

	slog.Info("memory index rebuilt", "documents", len(clean), "skipped", len(errs))
	return nil
}

// Stats scans the documents once and caches the result until the next write.
func (m *MemoryIndex) Stats(_ context.Context) (domain.IndexStats, error) {
	m.mu.RLock()
	if cached := m.state.stats; cached != nil {
		m.mu.RUnlock()
		return copyStats(*cached), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.stats == nil {
		docs := make([]domain.Document, len(m.state.entries))
		for i, e := range m.state.entries {
			docs[i] = e.doc
		}
		stats := domain.NewIndexStats(docs)
		m.state.stats = &stats
	}
	return copyStats(*m.state.stats), nil
}

// Len returns the number of stored documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.entries)
}

func copyStats(s domain.IndexStats) domain.IndexStats {
	byKind := make(map[domain.SourceKind]int, len(s.ByKind))
	for k, v := range s.ByKind {
		byKind[k] = v
	}
	s.ByKind = byKind
	return s
}
