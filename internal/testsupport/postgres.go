// Package testsupport holds shared fixtures for package tests: the reference datafile,
// Prometheus assertions and ephemeral Postgres and Redis containers for the
// integration suites.
package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rafaeljc/bifrost/internal/config"
	"github.com/rafaeljc/bifrost/internal/database"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresDB       = "bifrost_test"
	postgresUser     = "bifrost"
	postgresPassword = "bifrost-test-secret"
)

// PostgresContainer is an ephemeral event store with a ready connection pool.
type PostgresContainer struct {
	Container        testcontainers.Container
	DB               *pgxpool.Pool
	ConnectionString string
}

// Terminate closes the pool and removes the container.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	c.DB.Close()
	return c.Container.Terminate(ctx)
}

// StartPostgresContainer runs Postgres with every migration of migrationsDir applied
// in file name order, and connects through database.NewPostgresPool.
func StartPostgresContainer(ctx context.Context, migrationsDir string) (*PostgresContainer, error) {
	migrations, err := migrationFiles(migrationsDir)
	if err != nil {
		return nil, err
	}

	pgContainer, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase(postgresDB),
		postgres.WithUsername(postgresUser),
		postgres.WithPassword(postgresPassword),
		postgres.WithInitScripts(migrations...),
		testcontainers.WithWaitStrategy(
			// the server restarts once after running the init scripts
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:             connStr,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	return &PostgresContainer{
		Container:        pgContainer,
		DB:               pool,
		ConnectionString: connStr,
	}, nil
}

func migrationFiles(dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(abs, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migration files found in %s", abs)
	}
	slices.Sort(files)
	return files, nil
}
