package retrieval

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"

	"github.com/siherrmann/ragchat/database"
	"github.com/siherrmann/ragchat/helper"
	loadSql "github.com/siherrmann/ragchat/sql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var dbPort string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("error tearing down postgres container: %v", err)
		}
	}
	os.Exit(code)
}

func initChunks(t *testing.T, dimension int) *database.ChunksDBHandler {
	if dbPort == "" {
		t.Skip("Skipping pgvector test in short mode (requires docker)")
	}

	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	db := helper.NewTestDatabase(dbConfig)

	err = loadSql.Init(db.Instance)
	require.NoError(t, err)

	_, err = db.Instance.Exec(`DROP TABLE IF EXISTS chunks`)
	require.NoError(t, err)

	chunks, err := database.NewChunksDBHandler(db, "RAG_guardrails", dimension, true)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = chunks.Close()
	})

	return chunks
}
