package service

import (
	"context"
	"sync"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
)

// scriptedGenerator answers with GenerateFunc and records every prompt.
type scriptedGenerator struct {
	mu           sync.Mutex
	prompts      []string
	GenerateFunc func(prompt string) (string, error)
}

func (g *scriptedGenerator) ModelName() string { return "scripted" }

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	return g.GenerateFunc(prompt)
}

func (g *scriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func replyWith(text string) *scriptedGenerator {
	return &scriptedGenerator{GenerateFunc: func(string) (string, error) { return text, nil }}
}

// fakeIndex serves canned neighbours or an error.
type fakeIndex struct {
	neighbors []domain.Neighbor
	err       error
	lastK     int
	lastKind  domain.SourceKind
	rebuilt   [][]domain.Document
}

func (f *fakeIndex) Ingest(context.Context, domain.Document) error { return nil }

func (f *fakeIndex) Query(_ context.Context, _ string, k int, kind domain.SourceKind) ([]domain.Neighbor, error) {
	f.lastK, f.lastKind = k, kind
	if f.err != nil {
		return nil, f.err
	}
	out := append([]domain.Neighbor(nil), f.neighbors...)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeIndex) Rebuild(_ context.Context, docs []domain.Document) error {
	f.rebuilt = append(f.rebuilt, docs)
	return f.err
}

func (f *fakeIndex) Stats(context.Context) (domain.IndexStats, error) {
	var last []domain.Document
	if n := len(f.rebuilt); n > 0 {
		last = f.rebuilt[n-1]
	}
	return domain.NewIndexStats(last), nil
}

func neighbor(id, text string, distance float64) domain.Neighbor {
	return domain.Neighbor{
		Document: domain.Document{ID: id, Text: text, SourceKind: domain.SourceVocabulary},
		Distance: distance,
	}
}
