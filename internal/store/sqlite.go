package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend stores records in a single SQLite table. Several keeps may
// share one database file; rows are scoped by stack and prefix.
type SQLiteBackend struct {
	db     *sql.DB
	path   string
	stack  string
	prefix string
}

// OpenSQLite opens (creating if needed) the database at dbPath.
func OpenSQLite(dbPath, stack, prefix string) (*SQLiteBackend, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	sb := &SQLiteBackend{
		db:     db,
		path:   dbPath,
		stack:  stack,
		prefix: prefix,
	}

	if err := sb.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debugf("Opened sqlite keep %s (stack %s, prefix %s)", dbPath, stack, prefix)
	return sb, nil
}

// initialize creates the required tables.
func (sb *SQLiteBackend) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS keep_records (
		stack TEXT NOT NULL,
		prefix TEXT NOT NULL,
		namespace TEXT NOT NULL,
		uid TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (stack, prefix, namespace, uid)
	);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Get reads a record.
func (sb *SQLiteBackend) Get(ns Namespace, uid string) ([]byte, error) {
	var data []byte
	err := sb.db.QueryRow(`
		SELECT data FROM keep_records
		WHERE stack = ? AND prefix = ? AND namespace = ? AND uid = ?
	`, sb.stack, sb.prefix, string(ns), uid).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put replaces a record in a single statement.
func (sb *SQLiteBackend) Put(ns Namespace, uid string, data []byte) error {
	_, err := sb.db.Exec(`
		INSERT OR REPLACE INTO keep_records (stack, prefix, namespace, uid, data, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, sb.stack, sb.prefix, string(ns), uid, data)
	return err
}

// Delete removes a record.
func (sb *SQLiteBackend) Delete(ns Namespace, uid string) error {
	_, err := sb.db.Exec(`
		DELETE FROM keep_records
		WHERE stack = ? AND prefix = ? AND namespace = ? AND uid = ?
	`, sb.stack, sb.prefix, string(ns), uid)
	return err
}

// List reads every record in a namespace.
func (sb *SQLiteBackend) List(ns Namespace) (map[string][]byte, error) {
	rows, err := sb.db.Query(`
		SELECT uid, data FROM keep_records
		WHERE stack = ? AND prefix = ? AND namespace = ?
	`, sb.stack, sb.prefix, string(ns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			uid  string
			data []byte
		)
		if err := rows.Scan(&uid, &data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out[uid] = data
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (sb *SQLiteBackend) Close() error {
	return sb.db.Close()
}

var _ Backend = (*SQLiteBackend)(nil)
