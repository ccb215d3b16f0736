//go:build integration

package index

import (
	"context"
	"database/sql"
	"testing"

	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "github.com/lib/pq"
)

func TestPgVectorIndexContract(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("tutor"),
		postgres.WithUsername("tutor"),
		postgres.WithPassword("tutor"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runIndexContract(t, func(t *testing.T, e port.Embedder) port.KnowledgeIndex {
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS knowledge_documents`)
		require.NoError(t, err)
		idx, err := NewPgVectorIndex(ctx, db, e, 3)
		require.NoError(t, err)
		return idx
	})
}
