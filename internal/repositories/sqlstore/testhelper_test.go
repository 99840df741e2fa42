package sqlstore

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/asakaida/relcalc/internal/infrastructure/config"
	"github.com/asakaida/relcalc/internal/infrastructure/database"
)

// setupTestDB opens a SQLite database in a temporary directory and runs
// the embedded migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{URL: "sqlite:///" + filepath.Join(t.TempDir(), "relcalc.db")}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { cleanupTestDB(t, db.DB) })
	return db.DB
}

// cleanupTestDB empties every table and closes the connection
func cleanupTestDB(t *testing.T, db *sqlx.DB) {
	t.Helper()

	tables := []string{"analyses", "x_inheritance", "probabilities", "distributions", "relationships"}
	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("Warning: Failed to clean up table %s: %v", table, err)
		}
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}
