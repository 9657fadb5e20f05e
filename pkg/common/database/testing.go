package database

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	readyLogOccurrence = 2
	startUpTimeOut     = 120 * time.Second
)

// TestDatabase bundles a disposable PostgreSQL container with an open Conn.
type TestDatabase struct {
	Container *tcpostgres.PostgresContainer
	Conn      *Conn
}

// SetupTestDatabase starts postgres:16-alpine, connects through gorm and
// auto-migrates the given models. The container is terminated on test cleanup.
//
// Integration tests call it behind a short-mode guard:
//
//	if testing.Short() {
//		t.Skip("skipping integration test in short mode")
//	}
//	testDB := database.SetupTestDatabase(ctx, t, &Statistic{})
func SetupTestDatabase(ctx context.Context, t *testing.T, models ...interface{}) *TestDatabase {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("adpulse_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(readyLogOccurrence).
				WithStartupTimeout(startUpTimeOut),
		),
	)
	require.NoError(t, err, "Failed to start postgres container")
	require.NotNil(t, pgContainer, "postgres container is nil")

	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	conn, err := Open(dsn)
	require.NoError(t, err, "Failed to open database")
	t.Cleanup(func() {
		_ = conn.Close()
	})

	if len(models) > 0 {
		require.NoError(t, conn.DB().AutoMigrate(models...), "Failed to migrate test schema")
	}

	return &TestDatabase{Container: pgContainer, Conn: conn}
}

// SetupTestRedis starts redis:7-alpine and returns a client bound to it. The
// container and client are closed on test cleanup.
func SetupTestRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(startUpTimeOut),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start redis container")
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err, "Failed to get redis endpoint")

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() {
		_ = client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err(), "Failed to ping redis")
	return client
}
