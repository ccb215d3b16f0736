// Package app assembles the tutor from configuration: providers, index,
// progress store and services.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/arturoeanton/go-english-tutor/internal/adapter/ai"
	"github.com/arturoeanton/go-english-tutor/internal/adapter/index"
	"github.com/arturoeanton/go-english-tutor/internal/adapter/loader"
	"github.com/arturoeanton/go-english-tutor/internal/adapter/store"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/arturoeanton/go-english-tutor/internal/service"
	"github.com/arturoeanton/go-english-tutor/pkg/config"

	_ "github.com/lib/pq"
)

// App holds the wired services and the resources they own.
type App struct {
	Config *config.Config

	Generator port.Generator
	Embedder  port.Embedder
	Index     port.KnowledgeIndex
	Store     port.ProgressStore

	Retrieval *service.RetrievalService
	Knowledge *service.KnowledgeService
	Sessions  *service.SessionManager
	Tutor     *service.TutorService
	Progress  *service.ProgressService

	closers []io.Closer
}

// New builds every component selected by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	var gemini *ai.GeminiProvider
	if cfg.LLMProvider == "gemini" || cfg.EmbedProvider == "gemini" {
		g, err := ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbedModel)
		if err != nil {
			return err
		}
		gemini = g
	}
	ollama := ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		},
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
		},
	)

	switch cfg.LLMProvider {
	case "ollama":
		a.Generator = ollama
	case "gemini":
		a.Generator = gemini
	default:
		return fmt.Errorf("%w: llm provider %q", port.ErrUnknownProvider, cfg.LLMProvider)
	}

	embedder, err := a.newEmbedder(ollama, gemini)
	if err != nil {
		return err
	}
	a.Embedder = embedder

	progress, err := a.newStore(ctx)
	if err != nil {
		return err
	}
	a.Store = progress

	idx, err := a.newIndex(ctx)
	if err != nil {
		return err
	}
	a.Index = idx

	a.Retrieval = service.NewRetrievalService(a.Index).
		WithReranking(cfg.Tutor.OverfetchFactor, cfg.Tutor.KeywordBoost)
	a.Knowledge = service.NewKnowledgeService(loader.NewCorpusLoader(cfg.IngestWorkers), a.Index, a.Retrieval, cfg.DataDir)
	a.Sessions = service.NewSessionManager(a.Generator, a.Store, cfg.Tutor.SessionHistory)
	a.Tutor = service.NewTutorService(a.Retrieval, service.NewReflectionService(a.Generator), a.Sessions, a.Store, cfg.Tutor)
	a.Progress = service.NewProgressService(a.Store, cfg.Tutor.WeakTopicThreshold)

	slog.Info("tutor wired",
		"llm", cfg.LLMProvider,
		"model", a.Generator.ModelName(),
		"embeddings", cfg.EmbedProvider,
		"index", cfg.IndexBackend,
		"progress", cfg.ProgressBackend,
	)
	return nil
}

func (a *App) newEmbedder(ollama *ai.OllamaProvider, gemini *ai.GeminiProvider) (port.Embedder, error) {
	cfg := a.Config
	switch cfg.EmbedProvider {
	case "ollama":
		return ollama, nil
	case "gemini":
		return gemini, nil
	case "hashing":
		return ai.NewHashingEmbedder(cfg.EmbeddingDimension), nil
	case "hugot":
		modelPath, err := ai.PrepareHugotModel(cfg.HugotModel, cfg.HugotModelDir)
		if err != nil {
			return nil, err
		}
		h, err := ai.NewHugotEmbedder(modelPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, h)
		return h, nil
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", port.ErrUnknownProvider, cfg.EmbedProvider)
	}
}

func (a *App) newStore(ctx context.Context) (port.ProgressStore, error) {
	switch a.Config.ProgressBackend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, a.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg)
		return pg, nil
	default:
		return nil, fmt.Errorf("%w: progress backend %q", port.ErrUnknownProvider, a.Config.ProgressBackend)
	}
}

func (a *App) newIndex(ctx context.Context) (port.KnowledgeIndex, error) {
	cfg := a.Config
	switch cfg.IndexBackend {
	case "memory":
		return index.NewMemoryIndex(a.Embedder), nil
	case "sqlite":
		s, err := index.NewSQLiteIndex(cfg.SQLitePath, a.Embedder)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return s, nil
	case "pgvector":
		db, err := a.postgresDB(ctx)
		if err != nil {
			return nil, err
		}
		return index.NewPgVectorIndex(ctx, db, a.Embedder, cfg.EmbeddingDimension)
	default:
		return nil, fmt.Errorf("%w: index backend %q", port.ErrUnknownProvider, cfg.IndexBackend)
	}
}

// postgresDB shares the progress store's pool when it is Postgres.
func (a *App) postgresDB(ctx context.Context) (*sql.DB, error) {
	if pg, ok := a.Store.(*store.PostgresStore); ok {
		return pg.DB(), nil
	}
	db, err := sql.Open("postgres", a.Config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	a.closers = append(a.closers, db)
	return db, nil
}

// Close releases resources in reverse creation order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
