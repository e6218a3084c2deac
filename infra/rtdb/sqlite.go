package rtdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/stbs/core/rtdb"
)

const (
	kindLED    = "led"
	kindButton = "button"
)

// SQLiteStore persists the process image in a SQLite database so that the
// commanded outputs survive a restart.
type SQLiteStore struct {
	db *sql.DB
}

var _ rtdb.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database, ensures the schema and seeds
// every pin with 0 when missing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection: ":memory:" databases are per connection
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS pins (
        kind TEXT NOT NULL,
        idx INTEGER NOT NULL,
        value INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY(kind, idx)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.seed(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) seed() error {
	return s.tx(func(tx *sql.Tx) error {
		for _, kind := range []string{kindLED, kindButton} {
			for i := 0; i < rtdb.Pins; i++ {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO pins (kind, idx, value) VALUES (?, ?, 0)`, kind, i); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *SQLiteStore) tx(fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Snapshot reads every pin in one query.
func (s *SQLiteStore) Snapshot() (rtdb.Snapshot, error) {
	var snap rtdb.Snapshot
	rows, err := s.db.Query(`SELECT kind, idx, value FROM pins`)
	if err != nil {
		return snap, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind string
		var idx, value int
		if err := rows.Scan(&kind, &idx, &value); err != nil {
			return snap, err
		}
		if rtdb.CheckPin(idx) != nil {
			continue
		}
		switch kind {
		case kindLED:
			snap.LEDs[idx] = value
		case kindButton:
			snap.Buttons[idx] = value
		}
	}
	return snap, rows.Err()
}

// SetLED writes one LED value.
func (s *SQLiteStore) SetLED(i, v int) error {
	if err := rtdb.CheckPin(i); err != nil {
		return err
	}
	return s.set(kindLED, i, v)
}

// SetLEDs writes all LEDs atomically.
func (s *SQLiteStore) SetLEDs(v [rtdb.Pins]int) error { return s.setAll(kindLED, v) }

// SetButtons writes all buttons atomically.
func (s *SQLiteStore) SetButtons(v [rtdb.Pins]int) error { return s.setAll(kindButton, v) }

// ToggleLEDs flips the selected LEDs in one transaction.
func (s *SQLiteStore) ToggleLEDs(mask [rtdb.Pins]bool) error {
	return s.tx(func(tx *sql.Tx) error {
		for i, on := range mask {
			if !on {
				continue
			}
			if _, err := tx.Exec(`UPDATE pins SET value = CASE value WHEN 1 THEN 0 ELSE 1 END WHERE kind = ? AND idx = ?`, kindLED, i); err != nil {
				return fmt.Errorf("toggle %s %d: %w", kindLED, i, err)
			}
		}
		return nil
	})
}

// Sanitize resets invalid values to 0 in a single statement.
func (s *SQLiteStore) Sanitize() (int, error) {
	res, err := s.db.Exec(`UPDATE pins SET value = 0 WHERE value NOT IN (0, 1)`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Corrupt writes -1 to LED i.
func (s *SQLiteStore) Corrupt(i int) error {
	if err := rtdb.CheckPin(i); err != nil {
		return err
	}
	return s.set(kindLED, i, -1)
}

func (s *SQLiteStore) set(kind string, i, v int) error {
	_, err := s.db.Exec(`UPDATE pins SET value = ? WHERE kind = ? AND idx = ?`, v, kind, i)
	if err != nil {
		return fmt.Errorf("set %s %d: %w", kind, i, err)
	}
	return nil
}

func (s *SQLiteStore) setAll(kind string, v [rtdb.Pins]int) error {
	return s.tx(func(tx *sql.Tx) error {
		for i, val := range v {
			if _, err := tx.Exec(`UPDATE pins SET value = ? WHERE kind = ? AND idx = ?`, val, kind, i); err != nil {
				return fmt.Errorf("set %s %d: %w", kind, i, err)
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
