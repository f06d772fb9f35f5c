package seed

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func newSeedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE materials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			premium BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		t.Fatalf("create materials table: %v", err)
	}
	return db
}

func TestRun_SeedsDefaultCatalog(t *testing.T) {
	db := newSeedTestDB(t)

	stats, err := Run(db)
	if err != nil {
		t.Fatalf("seed run: %v", err)
	}
	if stats.Inserts != len(defaultMaterials) {
		t.Fatalf("expected %d inserts, got %d", len(defaultMaterials), stats.Inserts)
	}

	var premiumCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM materials WHERE premium`).Scan(&premiumCount); err != nil {
		t.Fatalf("count premium materials: %v", err)
	}
	if premiumCount != 3 {
		t.Fatalf("expected 3 premium materials, got %d", premiumCount)
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	db := newSeedTestDB(t)

	if _, err := Run(db); err != nil {
		t.Fatalf("first seed run: %v", err)
	}
	stats, err := Run(db)
	if err != nil {
		t.Fatalf("second seed run: %v", err)
	}
	if stats.Inserts != 0 {
		t.Fatalf("second run should insert nothing, got %d", stats.Inserts)
	}

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM materials`).Scan(&total); err != nil {
		t.Fatalf("count materials: %v", err)
	}
	if total != len(defaultMaterials) {
		t.Fatalf("expected %d materials, got %d", len(defaultMaterials), total)
	}
}
