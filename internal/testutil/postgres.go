// Package testutil provides integration-test helpers: a PostgreSQL
// testcontainer with the progression schema applied.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/grimoire/internal/config"
	"github.com/cory-johannsen/grimoire/internal/storage/postgres"
)

// schema mirrors migrations/ so tests do not need the migrate tool. Keep
// the two in sync when the tables change.
const schema = `
	CREATE TABLE IF NOT EXISTS players (
		id            TEXT         PRIMARY KEY,
		name          VARCHAR(64)  NOT NULL UNIQUE,
		password_hash TEXT         NOT NULL,
		mana_current  DOUBLE PRECISION NOT NULL DEFAULT 0,
		mana_bonus    DOUBLE PRECISION NOT NULL DEFAULT 0,
		health_bonus  DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS player_permissions (
		player_id  TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		permission TEXT NOT NULL,
		PRIMARY KEY (player_id, permission)
	);
	CREATE TABLE IF NOT EXISTS player_classes (
		player_id  TEXT    NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		group_id   TEXT    NOT NULL,
		class_id   TEXT    NOT NULL,
		level      INTEGER NOT NULL,
		experience INTEGER NOT NULL,
		points     INTEGER NOT NULL,
		PRIMARY KEY (player_id, group_id)
	);
	CREATE TABLE IF NOT EXISTS player_skills (
		player_id   TEXT    NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		skill_id    TEXT    NOT NULL,
		group_id    TEXT    NOT NULL DEFAULT '',
		level       INTEGER NOT NULL,
		cooldown_ms BIGINT  NOT NULL DEFAULT 0,
		slot        INTEGER NOT NULL DEFAULT -1,
		PRIMARY KEY (player_id, skill_id)
	);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a dedicated PostgreSQL test container and
// returns a connected Pool. Most tests should use NewPool, which shares
// one container across the package run.
//
// Postcondition: Returns a running container with a connected pool, skips
// the test when Docker is unavailable.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	container, dbCfg, err := startContainer(ctx)
	if err != nil {
		t.Skipf("postgres container unavailable: %v [%s]", err, time.Since(start))
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	return pc
}

// ApplyMigrations creates the progression schema in the test database.
//
// Precondition: Pool must be connected.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	start := time.Now()
	if _, err := pc.RawPool.Exec(context.Background(), schema); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.Config.User, pc.Config.Password,
		pc.Config.Host, pc.Config.Port,
		pc.Config.Name, pc.Config.SSLMode,
	)
}

var (
	sharedOnce sync.Once
	sharedPool *pgxpool.Pool
	sharedErr  error
)

// NewPool returns a pool onto the shared test database with the schema
// applied. TEST_DSN overrides the container when set (for CI with a
// provisioned database); otherwise one container is started for the whole
// process and reaped by testcontainers at exit. Tests share the database,
// so use unique player names.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	if dsn := os.Getenv("TEST_DSN"); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			t.Fatalf("connecting to TEST_DSN: %v", err)
		}
		t.Cleanup(pool.Close)
		applySchema(t, pool)
		return pool
	}

	sharedOnce.Do(func() {
		container, dbCfg, err := startContainer(ctx)
		if err != nil {
			sharedErr = err
			return
		}
		pool, err := pgxpool.New(ctx, dbCfg.DSN())
		if err != nil {
			_ = container.Terminate(ctx)
			sharedErr = err
			return
		}
		sharedPool = pool
	})
	if sharedErr != nil {
		t.Skipf("postgres unavailable: %v", sharedErr)
	}
	applySchema(t, sharedPool)
	return sharedPool
}

func applySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
}

func startContainer(ctx context.Context) (testcontainers.Container, config.DatabaseConfig, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, config.DatabaseConfig{}, fmt.Errorf("starting container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, config.DatabaseConfig{}, fmt.Errorf("getting container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, config.DatabaseConfig{}, fmt.Errorf("getting mapped port: %w", err)
	}

	return container, config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}, nil
}
