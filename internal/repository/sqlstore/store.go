// Package sqlstore implements the package record store on sqlx. The default
// driver is sqlite3 (a local file next to the sandbox); postgres DSNs work
// unchanged because every query is passed through Rebind.
package sqlstore

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS packages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	org TEXT,
	contact_name TEXT,
	emails TEXT,
	phones TEXT,
	pdf TEXT,
	subject TEXT,
	body_text TEXT,
	body_html TEXT,
	listing_url TEXT,
	status TEXT,
	created_at TIMESTAMP,
	updated_at TIMESTAMP,
	send_result TEXT
);`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS packages (
	id BIGSERIAL PRIMARY KEY,
	org TEXT,
	contact_name TEXT,
	emails TEXT,
	phones TEXT,
	pdf TEXT,
	subject TEXT,
	body_text TEXT,
	body_html TEXT,
	listing_url TEXT,
	status TEXT,
	created_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ,
	send_result TEXT
);`

// Store owns the database handle shared by all repositories.
type Store struct {
	db *sqlx.DB
}

// Open connects, verifies the connection, and ensures the schema exists.
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := sqliteSchema
	if driver == "postgres" {
		schema = postgresSchema
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure packages schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
