package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/domain"
	_ "github.com/lib/pq" // PostgreSQL driver
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore persists learner progress, the message log and audit logs.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, applies the schema and returns a store instance.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates missing tables. It is safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB, shared with the pgvector index.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// touchLearner creates the learner row if needed and bumps last_active.
func touchLearner(ctx context.Context, q execer, userID string) error {
	query := `INSERT INTO learners (user_id) VALUES ($1)
	          ON CONFLICT (user_id) DO UPDATE SET last_active = NOW()`
	if _, err := q.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("touch learner: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// inTx runs fn in a transaction, rolling back on error.
func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Messages ---

// AppendMessage adds a turn to the session log.
func (s *PostgresStore) AppendMessage(ctx context.Context, userID, sessionID string, turn domain.ConversationTurn) error {
	metadata := turn.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode message metadata: %w", err)
	}

	query := `INSERT INTO conversation_messages (user_id, session_id, role, content, metadata, created_at)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6)`
	if _, err := s.db.ExecContext(ctx, query,
		userID, sessionID, string(turn.Role), turn.Content, string(metadataJSON), turn.Timestamp,
	); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Messages returns up to limit most recent turns, oldest first. limit <= 0 returns all.
func (s *PostgresStore) Messages(ctx context.Context, userID, sessionID string, limit int) ([]domain.ConversationTurn, error) {
	query := `SELECT role, content, metadata, created_at FROM (
	              SELECT id, role, content, metadata, created_at
	              FROM conversation_messages
	              WHERE user_id = $1 AND session_id = $2
	              ORDER BY id DESC
	              LIMIT $3
	          ) recent ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, userID, sessionID, sql.NullInt64{Int64: int64(limit), Valid: limit > 0})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	turns := []domain.ConversationTurn{}
	for rows.Next() {
		var (
			t            domain.ConversationTurn
			role         string
			metadataJSON []byte
		)
		if err := rows.Scan(&role, &t.Content, &metadataJSON, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		t.Role = domain.TurnRole(role)
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode message metadata: %w", err)
		}
		if len(t.Metadata) == 0 {
			t.Metadata = nil
		}
		t.Timestamp = t.Timestamp.UTC()
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// --- Counters ---

// IncrementQueryCount adds one answered query to the learner's counters.
func (s *PostgresStore) IncrementQueryCount(ctx context.Context, userID string) error {
	query := `INSERT INTO learners (user_id, total_queries) VALUES ($1, 1)
	          ON CONFLICT (user_id) DO UPDATE SET
	              total_queries = learners.total_queries + 1,
	              last_active = NOW()`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("increment query count: %w", err)
	}
	return nil
}

// RecordSession adds one session to the learner's counters.
func (s *PostgresStore) RecordSession(ctx context.Context, userID string) error {
	query := `INSERT INTO learners (user_id, total_sessions) VALUES ($1, 1)
	          ON CONFLICT (user_id) DO UPDATE SET
	              total_sessions = learners.total_sessions + 1,
	              last_active = NOW()`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// --- Learning records ---

// AddVocabulary inserts a word or bumps its review counter.
func (s *PostgresStore) AddVocabulary(ctx context.Context, userID, word string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := touchLearner(ctx, tx, userID); err != nil {
			return err
		}
		query := `INSERT INTO vocabulary_items (user_id, word) VALUES ($1, $2)
		          ON CONFLICT (user_id, word) DO UPDATE SET
		              times_reviewed = vocabulary_items.times_reviewed + 1,
		              last_reviewed = NOW()`
		if _, err := tx.ExecContext(ctx, query, userID, word); err != nil {
			return fmt.Errorf("add vocabulary: %w", err)
		}
		return nil
	})
}

// AddGrammarTopic inserts a topic at initialMastery or raises its mastery one step.
func (s *PostgresStore) AddGrammarTopic(ctx context.Context, userID, topic string, initialMastery float64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := touchLearner(ctx, tx, userID); err != nil {
			return err
		}
		query := `INSERT INTO grammar_topics (user_id, topic, mastery_level) VALUES ($1, $2, $3)
		          ON CONFLICT (user_id, topic) DO UPDATE SET
		              mastery_level = LEAST(grammar_topics.mastery_level + $4, $5),
		              times_studied = grammar_topics.times_studied + 1,
		              last_studied = NOW()`
		if _, err := tx.ExecContext(ctx, query,
			userID, topic, initialMastery, domain.MasteryIncrement, domain.MaxMastery,
		); err != nil {
			return fmt.Errorf("add grammar topic: %w", err)
		}
		return nil
	})
}

// RecordExercise stores a score and keeps only the most recent ones per topic.
func (s *PostgresStore) RecordExercise(ctx context.Context, userID string, result domain.ExerciseResult) error {
	completedAt := result.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO learners (user_id, exercises_completed) VALUES ($1, 1)
		          ON CONFLICT (user_id) DO UPDATE SET
		              exercises_completed = learners.exercises_completed + 1,
		              last_active = NOW()`, userID); err != nil {
			return fmt.Errorf("count exercise: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exercise_results (user_id, exercise_id, topic, score, completed_at) VALUES ($1, $2, $3, $4, $5)`,
			userID, result.ExerciseID, result.Topic, result.Score, completedAt,
		); err != nil {
			return fmt.Errorf("insert exercise result: %w", err)
		}
		prune := `DELETE FROM exercise_results
		          WHERE user_id = $1 AND topic = $2 AND id NOT IN (
		              SELECT id FROM exercise_results
		              WHERE user_id = $1 AND topic = $2
		              ORDER BY id DESC LIMIT $3)`
		if _, err := tx.ExecContext(ctx, prune, userID, result.Topic, domain.ExerciseHistoryLimit); err != nil {
			return fmt.Errorf("prune exercise results: %w", err)
		}
		return nil
	})
}

// RecordMistake stores an example and keeps only the most recent ones per type.
func (s *PostgresStore) RecordMistake(ctx context.Context, userID string, mistake domain.Mistake) error {
	recordedAt := mistake.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := touchLearner(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mistakes (user_id, type, example, correction, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
			userID, mistake.Type, mistake.Example, mistake.Correction, recordedAt,
		); err != nil {
			return fmt.Errorf("insert mistake: %w", err)
		}
		prune := `DELETE FROM mistakes
		          WHERE user_id = $1 AND type = $2 AND id NOT IN (
		              SELECT id FROM mistakes
		              WHERE user_id = $1 AND type = $2
		              ORDER BY id DESC LIMIT $3)`
		if _, err := tx.ExecContext(ctx, prune, userID, mistake.Type, domain.MistakeHistoryLimit); err != nil {
			return fmt.Errorf("prune mistakes: %w", err)
		}
		return nil
	})
}

// GetProgress assembles the learner's full record. Unknown users get an empty one.
func (s *PostgresStore) GetProgress(ctx context.Context, userID string) (*domain.Progress, error) {
	p := domain.NewProgress(userID)

	err := s.db.QueryRowContext(ctx,
		`SELECT total_queries, total_sessions, exercises_completed, created_at, last_active
		 FROM learners WHERE user_id = $1`, userID,
	).Scan(&p.TotalQueries, &p.TotalSessions, &p.ExercisesCompleted, &p.CreatedAt, &p.LastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get learner: %w", err)
	}

	if err := s.loadVocabulary(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadGrammar(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadExerciseScores(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadMistakes(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) loadVocabulary(ctx context.Context, p *domain.Progress) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT word, first_seen, last_reviewed, times_reviewed FROM vocabulary_items WHERE user_id = $1`, p.UserID)
	if err != nil {
		return fmt.Errorf("list vocabulary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v domain.VocabularyItem
		if err := rows.Scan(&v.Word, &v.FirstSeen, &v.LastReviewed, &v.TimesReviewed); err != nil {
			return fmt.Errorf("scan vocabulary: %w", err)
		}
		p.Vocabulary[v.Word] = v
	}
	return rows.Err()
}

func (s *PostgresStore) loadGrammar(ctx context.Context, p *domain.Progress) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, mastery_level, times_studied, last_studied FROM grammar_topics WHERE user_id = $1`, p.UserID)
	if err != nil {
		return fmt.Errorf("list grammar topics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g domain.GrammarTopic
		if err := rows.Scan(&g.Topic, &g.Mastery, &g.TimesStudied, &g.LastStudied); err != nil {
			return fmt.Errorf("scan grammar topic: %w", err)
		}
		p.Grammar[g.Topic] = g
	}
	return rows.Err()
}

func (s *PostgresStore) loadExerciseScores(ctx context.Context, p *domain.Progress) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, score FROM exercise_results WHERE user_id = $1 ORDER BY id`, p.UserID)
	if err != nil {
		return fmt.Errorf("list exercise results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var topic string
		var score float64
		if err := rows.Scan(&topic, &score); err != nil {
			return fmt.Errorf("scan exercise result: %w", err)
		}
		p.ExerciseScores[topic] = append(p.ExerciseScores[topic], score)
	}
	return rows.Err()
}

func (s *PostgresStore) loadMistakes(ctx context.Context, p *domain.Progress) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, example, correction, recorded_at FROM mistakes WHERE user_id = $1 ORDER BY id`, p.UserID)
	if err != nil {
		return fmt.Errorf("list mistakes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.Mistake
		if err := rows.Scan(&m.Type, &m.Example, &m.Correction, &m.RecordedAt); err != nil {
			return fmt.Errorf("scan mistake: %w", err)
		}
		p.Mistakes[m.Type] = append(p.Mistakes[m.Type], m)
	}
	return rows.Err()
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	if details == "" {
		details = "{}"
	}
	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`
	_, err := s.db.ExecContext(context.Background(), query,
		userID, action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with optional filters.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, user_id, action, resource, resource_id, details, ip, user_agent, created_at
	          FROM audit_logs`
	args := []interface{}{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.AuditLog{}
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
