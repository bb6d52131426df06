package migrate_test

import (
	"testing"

	"roastline/internal/db"
	"roastline/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	var revision int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&revision); err != nil {
		t.Fatalf("read revision: %v", err)
	}
	if revision < 1 {
		t.Fatalf("expected revision >= 1, got %d", revision)
	}
	// A second run must not reapply anything.
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO coffees(id, name) VALUES ('kenya', 'Kenya AA')`); err != nil {
		t.Fatalf("schema missing after migrate: %v", err)
	}
}
