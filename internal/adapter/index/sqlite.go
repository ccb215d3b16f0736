package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndex persists documents and their embeddings in a single SQLite file.
// Similarity is computed in Go by a brute-force scan, which is fine for corpora of
// a few tens of thousands of documents.
type SQLiteIndex struct {
	embedder port.Embedder
	db       *sql.DB

	mu    sync.RWMutex
	stats *domain.IndexStats
}

// NewSQLiteIndex opens (or creates) the index database at path.
func NewSQLiteIndex(path string, embedder port.Embedder) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	db.SetMaxOpenConns(1)

	idx := &SQLiteIndex{embedder: embedder, db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init index schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source_kind TEXT NOT NULL,
		file_origin TEXT NOT NULL,
		body TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(source_kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

const sqliteUpsert = `
	INSERT INTO documents (id, source_kind, file_origin, body, metadata, embedding)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		source_kind = excluded.source_kind,
		file_origin = excluded.file_origin,
		body = excluded.body,
		metadata = excluded.metadata,
		embedding = excluded.embedding`

// Ingest upserts doc. An existing row keeps its sequence number, so ties still
// resolve by first insertion.
func (s *SQLiteIndex) Ingest(ctx context.Context, doc domain.Document) error {
	if err := validate(doc); err != nil {
		return err
	}
	vector, err := s.embedder.Embed(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("embed %s: %w", doc.ID, err)
	}
	args, err := rowArgs(doc, vector)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, sqliteUpsert, args...); err != nil {
		return fmt.Errorf("ingest %s: %w", doc.ID, err)
	}
	s.stats = nil
	return nil
}

// Query scans the stored vectors in insertion order and ranks them.
func (s *SQLiteIndex) Query(ctx context.Context, text string, k int, kind domain.SourceKind) ([]domain.Neighbor, error) {
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_kind, file_origin, body, metadata, embedding
		FROM documents
		WHERE ? = '' OR source_kind = ?
		ORDER BY seq`, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	candidates := []domain.Neighbor{}
	for rows.Next() {
		var (
			doc           domain.Document
			kindStr       string
			metadataJSON  string
			embeddingJSON []byte
			stored        []float32
		)
		if err := rows.Scan(&doc.ID, &kindStr, &doc.FileOrigin, &doc.Text, &metadataJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(embeddingJSON, &stored); err != nil {
			slog.Warn("skipping document with corrupted embedding", "id", doc.ID, "error", err)
			continue
		}
		doc.SourceKind = domain.SourceKind(kindStr)
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			doc.Metadata = nil
		}
		candidates = append(candidates, domain.Neighbor{Document: doc, Distance: cosineDistance(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return nearest(candidates, k), nil
}

// Rebuild embeds docs first, then replaces the table content in one transaction.
func (s *SQLiteIndex) Rebuild(ctx context.Context, docs []domain.Document) error {
	clean, errs := dedupe(docs)
	for _, err := range errs {
		slog.Warn("skipping document", "error", err)
	}

	vectors, err := embedAll(ctx, s.embedder, clean)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'documents'`); err != nil {
		return fmt.Errorf("reset sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, d := range clean {
		args, err := rowArgs(d, vectors[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.stats = nil

	slog.Info("sqlite index rebuilt", "documents", len(clean), "skipped", len(errs))
	return nil
}

// Stats groups documents by kind once and caches the result.
func (s *SQLiteIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	s.mu.RLock()
	if s.stats != nil {
		defer s.mu.RUnlock()
		return copyStats(*s.stats), nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		stats, err := groupStats(ctx, s.db, `SELECT source_kind, COUNT(*) FROM documents GROUP BY source_kind`)
		if err != nil {
			return domain.IndexStats{}, err
		}
		s.stats = &stats
	}
	return copyStats(*s.stats), nil
}

func rowArgs(doc domain.Document, vector []float32) ([]interface{}, error) {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata %s: %w", doc.ID, err)
	}
	embeddingJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("encode embedding %s: %w", doc.ID, err)
	}
	return []interface{}{doc.ID, string(doc.SourceKind), doc.FileOrigin, doc.Text, string(metadataJSON), embeddingJSON}, nil
}

// groupStats runs a (kind, count) aggregate and fills every known kind.
func groupStats(ctx context.Context, db *sql.DB, query string) (domain.IndexStats, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("count documents: %w", err)
	}
	defer rows.Close()

	stats := domain.NewIndexStats(nil)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return domain.IndexStats{}, fmt.Errorf("scan count: %w", err)
		}
		stats.ByKind[domain.SourceKind(kind)] = n
		stats.Total += n
	}
	return stats, rows.Err()
}
