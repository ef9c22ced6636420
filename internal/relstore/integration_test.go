//go:build integration
// +build integration

package relstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres launches a disposable PostgreSQL container for the test.
func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "casefile",
			"POSTGRES_PASSWORD": "casefile",
			"POSTGRES_DB":       "casefile",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		AutoRemove: true,
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://casefile:casefile@%s:%d/casefile?sslmode=disable", host, port.Int())
}

func TestStoreMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	url := startPostgres(t, ctx)

	store, err := NewStore(Config{DatabaseURL: url})
	require.NoError(t, err)
	require.NoError(t, store.Start(ctx))
	defer store.Stop(ctx)

	// Migrations are idempotent.
	require.NoError(t, store.Migrate(ctx))

	var version int
	err = store.DB().QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	for _, table := range []string{"workflows", "workflow_steps", "investigation_notebooks"} {
		var one int
		err := store.DB().QueryRowContext(ctx,
			"SELECT 1 FROM information_schema.tables WHERE table_name = $1", table).Scan(&one)
		require.NoError(t, err, "expected table %s to exist", table)
	}
}
