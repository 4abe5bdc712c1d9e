//go:build integration

// Package integration runs the settlement stack against a real PostgreSQL
// started with testcontainers.
package integration

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/debtsettle/backend/internal/infrastructure/config"
	"github.com/debtsettle/backend/internal/infrastructure/migration"
	"github.com/debtsettle/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const (
	testDBName     = "debtsettle_test"
	testDBUser     = "postgres"
	testDBPassword = "admin123"
)

// TestDB is a migrated database in its own container, torn down with the test
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB starts PostgreSQL, connects through the production pool setup and
// applies the embedded migrations. Set TEST_DB_DEBUG to see every statement.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests need docker")
	}
	ctx := t.Context()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")
	testcontainers.CleanupContainer(t, container)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	log := zap.NewNop()
	sqlLevel := "silent"
	if debugSQL() {
		log = zaptest.NewLogger(t)
		sqlLevel = "info"
	}

	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Host:            host,
		Port:            port,
		User:            testDBUser,
		Password:        testDBPassword,
		DBName:          testDBName,
		SSLMode:         "disable",
		MaxOpenConns:    20, // the concurrency tests race this many negotiations
		MaxIdleConns:    5,
		ConnMaxLifetime: 5,
		LogLevel:        sqlLevel,
	}, log)
	require.NoError(t, err, "connect to postgres")
	t.Cleanup(func() { _ = database.Close() })

	migrator, err := migration.New(database.SQLDB(), "", zaptest.NewLogger(t))
	require.NoError(t, err, "create migrator")
	require.NoError(t, migrator.Up(), "apply migrations")

	return &TestDB{DB: database.DB}
}

func debugSQL() bool {
	return os.Getenv("TEST_DB_DEBUG") != ""
}
