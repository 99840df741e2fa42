package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/asakaida/relcalc/internal/infrastructure/config"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

func init() {
	// modernc registers as "sqlite", which sqlx does not know yet
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Database represents a database connection for either supported dialect
type Database struct {
	DB *sqlx.DB
}

// Open creates a new database connection from the configured URL
func Open(cfg *config.DatabaseConfig) (*Database, error) {
	driver, _, err := cfg.Driver()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	if driver == "sqlite" {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Dialect returns the driver name ("postgres" or "sqlite")
func (d *Database) Dialect() string {
	return d.DB.DriverName()
}

// MigrationsFS returns the embedded migrations for a dialect
func MigrationsFS(dialect string) (fs.FS, error) {
	switch dialect {
	case "postgres", "sqlite":
		return fs.Sub(migrations, "migrations/"+dialect)
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

// NewMigrateDriver creates a golang-migrate database driver for the connection.
// Do not call Close on the returned driver or a Migrate built on it, because
// that closes the shared connection.
func (d *Database) NewMigrateDriver() (migratedb.Driver, error) {
	switch d.Dialect() {
	case "postgres":
		return postgres.WithInstance(d.DB.DB, &postgres.Config{})
	case "sqlite":
		return sqlite.WithInstance(d.DB.DB, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d.Dialect())
	}
}

// NewMigrate creates a migrate instance reading the embedded migrations
func (d *Database) NewMigrate() (*migrate.Migrate, error) {
	migrationsFS, err := MigrationsFS(d.Dialect())
	if err != nil {
		return nil, err
	}
	source, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := d.NewMigrateDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.Dialect(), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies all pending migrations
func (d *Database) RunMigrations() error {
	m, err := d.NewMigrate()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck checks if the database connection is healthy
func (d *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
