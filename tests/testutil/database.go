package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// truncated lists every table the migrations create, children first.
var truncated = []string{
	"password_resets",
	"refresh_tokens",
	"list_items",
	"lists",
	"family_invites",
	"family_links",
	"family_members",
	"user_billing",
	"families",
	"users",
	"plans",
}

type TestDB struct {
	DB *database.DB
}

var shared struct {
	once sync.Once
	db   *database.DB
	err  error
}

// SetupTestDB returns a migrated, empty database. One Postgres container is
// started per test binary and reused; the testcontainers reaper removes it
// when the process exits. It skips in -short mode.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	shared.once.Do(func() {
		shared.db, shared.err = startPostgres(context.Background())
	})
	if shared.err != nil {
		t.Fatalf("postgres unavailable: %v", shared.err)
	}

	tdb := &TestDB{DB: shared.db}
	tdb.Reset(t)
	return tdb
}

func startPostgres(ctx context.Context) (*database.DB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "listshub_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve endpoint: %w", err)
	}

	db, err := database.New(ctx, fmt.Sprintf("postgres://test:test@%s/listshub_test?sslmode=disable", endpoint))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return db, nil
}

// Reset empties every table in one statement.
func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()
	stmt := "TRUNCATE TABLE " + strings.Join(truncated, ", ") + " CASCADE"
	if _, err := tdb.DB.Pool.Exec(context.Background(), stmt); err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}
}
