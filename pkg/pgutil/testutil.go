package pgutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/ministryhub/checkin-rollup/pkg/config"
)

const (
	testImage       = "postgres:16-alpine"
	testDatabase    = "checkin_test"
	testUser        = "checkin"
	testPassword    = "checkin"
	connectAttempts = 10
)

// SetupTestDB starts a throwaway Postgres container and returns a connected
// pool plus a cleanup func that closes it and removes the container.
func SetupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		testImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	terminate := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		terminate()
		t.Fatalf("failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		Host:           host,
		Port:           port.Int(),
		User:           testUser,
		Password:       testPassword,
		Database:       testDatabase,
		SSLMode:        "disable",
		ConnectTimeout: 5 * time.Second,
		MaxOpenConns:   25,
	}

	// The container may log readiness before it accepts TCP connections.
	var db *bun.DB
	for attempt := 0; ; attempt++ {
		db, err = ConnectDB(cfg)
		if err == nil {
			break
		}
		if attempt == connectAttempts-1 {
			terminate()
			t.Fatalf("failed to connect to test database after %d attempts: %v", connectAttempts, err)
		}
		time.Sleep(time.Duration(100<<attempt) * time.Millisecond)
	}

	return db, func() {
		_ = db.Close()
		terminate()
	}
}

func relationExists(t *testing.T, db *bun.DB, query, name string) bool {
	t.Helper()
	var exists bool
	err := db.NewSelect().
		ColumnExpr("EXISTS ("+query+")", "public", name).
		Scan(context.Background(), &exists)
	require.NoError(t, err, "lookup %s", name)
	return exists
}

const (
	tableQuery = "SELECT 1 FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
	indexQuery = "SELECT 1 FROM pg_indexes WHERE schemaname = ? AND indexname = ?"
)

// AssertTableExists fails the test when tableName is missing.
func AssertTableExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	if !relationExists(t, db, tableQuery, tableName) {
		t.Errorf("table %s does not exist", tableName)
	}
}

// AssertTableNotExists fails the test when tableName is present.
func AssertTableNotExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	if relationExists(t, db, tableQuery, tableName) {
		t.Errorf("table %s should not exist but it does", tableName)
	}
}

// AssertIndexExists fails the test when indexName is missing.
func AssertIndexExists(t *testing.T, db *bun.DB, indexName string) {
	t.Helper()
	if !relationExists(t, db, indexQuery, indexName) {
		t.Errorf("index %s does not exist", indexName)
	}
}

// AssertRowCount fails the test unless tableName holds exactly expected rows.
func AssertRowCount(t *testing.T, db *bun.DB, tableName string, expected int) {
	t.Helper()
	var count int
	err := db.NewSelect().
		TableExpr("?", bun.Ident(tableName)).
		ColumnExpr("COUNT(*)").
		Scan(context.Background(), &count)
	require.NoError(t, err, "count rows in %s", tableName)
	if count != expected {
		t.Errorf("table %s: expected %d rows, got %d", tableName, expected, count)
	}
}
