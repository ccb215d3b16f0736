package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
)

// Rebuild stages reported to progress callbacks.
const (
	StageLoading  = "loading"
	StageIndexing = "indexing"
	StageDone     = "done"
)

// KnowledgeService loads the corpus into the knowledge index and serves admin queries.
type KnowledgeService struct {
	loader    port.CorpusLoader
	index     port.KnowledgeIndex
	retrieval *RetrievalService
	dataDir   string

	rebuildMu sync.Mutex
}

// NewKnowledgeService creates a knowledge service over the corpus at dataDir.
func NewKnowledgeService(loader port.CorpusLoader, index port.KnowledgeIndex, retrieval *RetrievalService, dataDir string) *KnowledgeService {
	return &KnowledgeService{loader: loader, index: index, retrieval: retrieval, dataDir: dataDir}
}

// Rebuild reloads the corpus and swaps the index content. Concurrent calls run
// one after another. onStage may be nil.
func (s *KnowledgeService) Rebuild(ctx context.Context, onStage func(stage string)) (*domain.IndexStats, error) {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	report := func(stage string) {
		if onStage != nil {
			onStage(stage)
		}
	}

	start := time.Now()
	report(StageLoading)
	docs, err := s.loader.Load(ctx, s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	report(StageIndexing)
	if err := s.index.Rebuild(ctx, docs); err != nil {
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	stats, err := s.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}
	report(StageDone)

	slog.Info("knowledge index rebuilt",
		"documents", stats.Total,
		"vocabulary", stats.ByKind[domain.SourceVocabulary],
		"grammar", stats.ByKind[domain.SourceGrammar],
		"exercise", stats.ByKind[domain.SourceExercise],
		"duration", time.Since(start),
	)
	return &stats, nil
}

// Stats returns per-kind document counts.
func (s *KnowledgeService) Stats(ctx context.Context) (domain.IndexStats, error) {
	return s.index.Stats(ctx)
}

// Search runs a reranked retrieval restricted to kind (empty for all kinds).
func (s *KnowledgeService) Search(ctx context.Context, query string, k int, kind domain.SourceKind) RetrievalResult {
	return s.retrieval.Search(ctx, query, k, kind)
}

// Watch rebuilds the index once events have been quiet for debounce. It returns
// when ctx is done or events is closed.
func (s *KnowledgeService) Watch(ctx context.Context, events <-chan port.CorpusEvent, debounce time.Duration) {
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			slog.Debug("corpus changed", "path", ev.Path, "operation", ev.Operation)
			timer.Reset(debounce)
		case <-timer.C:
			if _, err := s.Rebuild(ctx, nil); err != nil {
				slog.Error("corpus rebuild failed", "error", err)
			}
		}
	}
}
