// Package sqlite implements the repository interfaces on SQLite.
//
// The driver is modernc.org/sqlite: a pure-Go translation of SQLite, so the
// binary builds without CGo and tests can run against ":memory:" databases.
// Monetary columns are TEXT holding 2-dp decimal strings — SQLite has no
// decimal type and REAL would reintroduce float rounding; all arithmetic on
// amounts happens in Go with shopspring/decimal.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Blank import registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements
// repository.AccountRepository, LedgerRepository and FundRepository.
type DB struct {
	conn *sql.DB

	// genRiderID produces candidate rider identifiers for Create. Tests
	// swap it to force collisions; nil falls back to riderid.New.
	genRiderID func() string
}

// New opens the database at dbPath (":memory:" for tests), applies the
// connection pragmas and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed during a write; the server handles requests
	// concurrently even though each operation is a single small statement.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite. The cascade from accounts
	// to every owned table depends on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Defer it wherever New is called.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent, so it is safe to run on every start.
//
// The UNIQUE constraints on profiles.rider_id and rider_info.rider_id are
// the final authority for identifier allocation: Create inserts a candidate
// and retries on conflict rather than pre-checking with a SELECT.
func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			date_joined   DATETIME NOT NULL,
			last_login    DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);`,

		`CREATE TABLE IF NOT EXISTS profiles (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
			location   TEXT NOT NULL DEFAULT '',
			avatar     TEXT NOT NULL DEFAULT '',
			rider_id   TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS rider_info (
			id            TEXT PRIMARY KEY,
			account_id    TEXT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
			rider_id      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL,
			username      TEXT NOT NULL,
			is_active     INTEGER NOT NULL DEFAULT 1,
			created_at    DATETIME NOT NULL,
			last_activity DATETIME NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS incomes (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			source     TEXT NOT NULL,
			amount     TEXT NOT NULL,
			date       DATETIME NOT NULL,
			notes      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_incomes_account_date ON incomes(account_id, date);`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			category   TEXT NOT NULL,
			amount     TEXT NOT NULL,
			date       DATETIME NOT NULL,
			notes      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_account_date ON expenses(account_id, date);`,

		`CREATE TABLE IF NOT EXISTS mutual_funds (
			id              TEXT PRIMARY KEY,
			account_id      TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			name            TEXT NOT NULL,
			fund_type       TEXT NOT NULL,
			invested_amount TEXT NOT NULL,
			current_value   TEXT NOT NULL,
			created_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_mutual_funds_account ON mutual_funds(account_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// the given column ("profiles.rider_id"). modernc.org/sqlite surfaces
// constraint failures as plain errors carrying the SQLite message text.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
