package seed

import (
	"database/sql"
	"fmt"
)

// defaultMaterials is the catalog offered until the back office adds its
// own. Premium entries carry the pricing surcharge by name convention.
var defaultMaterials = []struct {
	name    string
	premium bool
}{
	{"Standard PLA", false},
	{"Standard PETG", false},
	{"Standard Resin", false},
	{"Premium PLA", true},
	{"Metallic Silver PLA", true},
	{"Wood Composite", true},
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensureMaterials(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureMaterials(tx *sql.Tx, stats *Stats) error {
	for _, m := range defaultMaterials {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM materials WHERE name = ? LIMIT 1)`, m.name).Scan(&exists); err != nil {
			return fmt.Errorf("check material %q existence: %w", m.name, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO materials (name, premium, active)
			VALUES (?, ?, TRUE)
		`, m.name, m.premium); err != nil {
			return fmt.Errorf("insert material %q: %w", m.name, err)
		}
		stats.Inserts++
	}
	return nil
}
