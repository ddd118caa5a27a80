package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DBOptions configures the throwaway Postgres behind the integration tests.
// Empty fields fall back to the RETAINER_TEST_* environment, then to defaults.
type DBOptions struct {
	Image          string        `env:"RETAINER_TEST_PG_IMAGE" envDefault:"postgres:16-alpine"`
	Database       string        `env:"RETAINER_TEST_DB_NAME" envDefault:"retainer_test"`
	MigrationsDir  string        `env:"RETAINER_TEST_MIGRATIONS_DIR"`
	StartupTimeout time.Duration `env:"RETAINER_TEST_PG_STARTUP_TIMEOUT" envDefault:"30s"`
}

func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return SetupTestDBWith(t, DBOptions{})
}

// SetupTestDBWith starts a Postgres container and applies every *.up.sql
// migration in order, each in its own transaction.
func SetupTestDBWith(t *testing.T, override DBOptions) *sql.DB {
	t.Helper()
	ctx := context.Background()

	opts, err := resolveDBOptions(override)
	if err != nil {
		t.Fatalf("resolve test db options: %v", err)
	}

	container, err := postgres.Run(ctx, opts.Image,
		postgres.WithDatabase(opts.Database),
		postgres.WithUsername("retainer"),
		postgres.WithPassword("retainer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(opts.StartupTimeout),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	applied, err := applyMigrations(ctx, db, opts.MigrationsDir)
	if err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	t.Logf("test db %s ready, %d migrations from %s", opts.Database, applied, opts.MigrationsDir)

	return db
}

func resolveDBOptions(override DBOptions) (DBOptions, error) {
	opts, err := env.ParseAs[DBOptions]()
	if err != nil {
		return DBOptions{}, fmt.Errorf("resolveDBOptions: %w", err)
	}

	if override.Image != "" {
		opts.Image = override.Image
	}
	if override.Database != "" {
		opts.Database = override.Database
	}
	if override.MigrationsDir != "" {
		opts.MigrationsDir = override.MigrationsDir
	}
	if override.StartupTimeout > 0 {
		opts.StartupTimeout = override.StartupTimeout
	}
	if opts.MigrationsDir == "" {
		opts.MigrationsDir = findMigrationsDir()
	}
	return opts, nil
}

func upMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .up.sql files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

func applyMigrations(ctx context.Context, db *sql.DB, dir string) (int, error) {
	files, err := upMigrations(dir)
	if err != nil {
		return 0, err
	}

	for _, f := range files {
		content, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("begin migration %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("execute migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit migration %s: %w", f, err)
		}
	}

	return len(files), nil
}

// go test runs in the package directory, so walk up to the module root.
func findMigrationsDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "migrations"
	}
	for range 10 {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return "migrations"
}
