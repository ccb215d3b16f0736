package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/pgvector/pgvector-go"
)

// PgVectorIndex stores documents in Postgres and ranks them with the pgvector
// cosine distance operator. Rebuild runs in one transaction, so concurrent
// readers keep seeing the previous content until commit.
type PgVectorIndex struct {
	db        *sql.DB
	embedder  port.Embedder
	dimension int

	mu    sync.Mutex
	stats *domain.IndexStats
}

// NewPgVectorIndex creates the table (if needed) on db for vectors of the given dimension.
func NewPgVectorIndex(ctx context.Context, db *sql.DB, embedder port.Embedder, dimension int) (*PgVectorIndex, error) {
	idx := &PgVectorIndex{db: db, embedder: embedder, dimension: dimension}
	if err := idx.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init pgvector schema: %w", err)
	}
	return idx, nil
}

func (p *PgVectorIndex) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_documents (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			source_kind TEXT NOT NULL,
			file_origin TEXT NOT NULL,
			body TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, p.dimension),
		`CREATE INDEX IF NOT EXISTS idx_knowledge_documents_kind ON knowledge_documents (source_kind)`,
	}
	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const pgUpsert = `
	INSERT INTO knowledge_documents (id, source_kind, file_origin, body, metadata, embedding)
	VALUES ($1, $2, $3, $4, $5::jsonb, $6)
	ON CONFLICT (id) DO UPDATE SET
		source_kind = EXCLUDED.source_kind,
		file_origin = EXCLUDED.file_origin,
		body = EXCLUDED.body,
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding`

// Ingest upserts a single document.
func (p *PgVectorIndex) Ingest(ctx context.Context, doc domain.Document) error {
	if err := validate(doc); err != nil {
		return err
	}
	vector, err := p.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", doc.ID, err)
	}
	metadataJSON, err := encodeMetadata(doc)
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, pgUpsert,
		doc.ID, string(doc.SourceKind), doc.FileOrigin, doc.Text, metadataJSON, pgvector.NewVector(vector),
	); err != nil {
		return fmt.Errorf("ingest %s: %w", doc.ID, err)
	}
	p.invalidate()
	return nil
}

// Query orders by cosine distance, then by insertion sequence.
func (p *PgVectorIndex) Query(ctx context.Context, text string, k int, kind domain.SourceKind) ([]domain.Neighbor, error) {
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}

	vector, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	query := `SELECT id, source_kind, file_origin, body, metadata, embedding <=> $1 AS distance
	          FROM knowledge_documents
	          WHERE $2 = '' OR source_kind = $2
	          ORDER BY distance, seq
	          LIMIT $3`

	rows, err := p.db.QueryContext(ctx, query, pgvector.NewVector(vector), string(kind), k)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	neighbors := []domain.Neighbor{}
	for rows.Next() {
		var (
			n            domain.Neighbor
			kindStr      string
			metadataJSON []byte
		)
		if err := rows.Scan(&n.Document.ID, &kindStr, &n.Document.FileOrigin, &n.Document.Text, &metadataJSON, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		n.Document.SourceKind = domain.SourceKind(kindStr)
		if err := json.Unmarshal(metadataJSON, &n.Document.Metadata); err != nil {
			n.Document.Metadata = nil
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// Rebuild truncates and reloads the table in a single transaction.
func (p *PgVectorIndex) Rebuild(ctx context.Context, docs []domain.Document) error {
	clean, errs := dedupe(docs)
	for _, err := range errs {
		slog.Warn("skipping document", "error", err)
	}

	vectors, err := embedAll(ctx, p.embedder, clean)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE knowledge_documents RESTART IDENTITY`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pgUpsert)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, d := range clean {
		metadataJSON, err := encodeMetadata(d)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			d.ID, string(d.SourceKind), d.FileOrigin, d.Text, metadataJSON, pgvector.NewVector(vectors[i]),
		); err != nil {
			return fmt.Errorf("insert %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	p.invalidate()

	slog.Info("pgvector index rebuilt", "documents", len(clean), "skipped", len(errs))
	return nil
}

// Stats groups documents by kind once and caches the result.
func (p *PgVectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stats == nil {
		stats, err := groupStats(ctx, p.db, `SELECT source_kind, COUNT(*) FROM knowledge_documents GROUP BY source_kind`)
		if err != nil {
			return domain.IndexStats{}, err
		}
		p.stats = &stats
	}
	return copyStats(*p.stats), nil
}

func (p *PgVectorIndex) invalidate() {
	p.mu.Lock()
	p.stats = nil
	p.mu.Unlock()
}

func encodeMetadata(doc domain.Document) (string, error) {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata %s: %w", doc.ID, err)
	}
	return string(b), nil
}
