package database

import (
	"database/sql"
	"fmt"
)

// migrate applies every migration above the database's current version, in
// order. PRAGMA user_version records how far the schema has advanced, so a
// fresh database starts at 0 and walks the whole list.
func migrate(conn *sql.DB) error {
	var current int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// The driver cannot run PRAGMA user_version inside the transaction.
		// A crash between commit and stamp re-runs the migration on the next
		// open, which the IF NOT EXISTS DDL tolerates.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("stamping schema version %d: %w", m.Version, err)
		}
		current = m.Version
	}

	return nil
}
