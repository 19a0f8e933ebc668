package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) (*sql.DB, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func getMigrationsPath(t *testing.T) string {
	projectRoot, err := filepath.Abs("../..")
	require.NoError(t, err)

	migrationsPath := filepath.Join(projectRoot, "migrations")
	t.Logf("Migrations path: %s", migrationsPath)
	return migrationsPath
}

func TestRun_CreatesSchema(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	require.NoError(t, Run(db, getMigrationsPath(t)))

	columns := map[string][]string{
		"users":         {"id", "votes", "last_voted", "xp", "premium_expire_at", "premium_tier_name"},
		"subscriptions": {"id", "email", "name", "tier_name", "amount", "first_time", "activated_by", "expired", "expire_time"},
	}
	for table, want := range columns {
		rows, err := db.Query(`SELECT column_name FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1`, table)
		require.NoError(t, err)

		var got []string
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			got = append(got, name)
		}
		require.NoError(t, rows.Err())
		rows.Close()
		require.ElementsMatch(t, want, got, "table %s", table)
	}

	for _, index := range []string{"idx_subscriptions_email", "idx_subscriptions_expiry"} {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS (
			SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = $1)`, index).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, "index %s", index)
	}
}

func TestRun_Twice(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	path := getMigrationsPath(t)
	require.NoError(t, Run(db, path))
	require.NoError(t, Run(db, path))

	var version int
	require.NoError(t, db.QueryRow(`SELECT version FROM schema_migrations`).Scan(&version))
	require.Equal(t, 1, version)
}

func TestRun_BadPath(t *testing.T) {
	db, cleanup := getTestDB(t)
	defer cleanup()

	require.Error(t, Run(db, filepath.Join(t.TempDir(), "missing")))
}
