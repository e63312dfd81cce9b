package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool. Pragmas go through the DSN so
// every pooled connection gets them. Transactions start IMMEDIATE so a writer
// waits on busy_timeout instead of failing on a stale read snapshot.
func New(dataSourceName string) (*sql.DB, error) {
	dsn := dataSourceName + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; keep the pool small.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dataSourceName, err)
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	// Timestamps are fixed-width UTC text so they sort lexically.
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_staff BOOLEAN NOT NULL DEFAULT FALSE,
		is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
		last_login TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recipes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		time_minutes INTEGER NOT NULL CHECK (time_minutes >= 0),
		price TEXT NOT NULL, -- decimal string, e.g. "5.50"
		description TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recipes_user ON recipes(user_id);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		UNIQUE (user_id, name)
	);

	CREATE TABLE IF NOT EXISTS ingredients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		UNIQUE (user_id, name)
	);

	CREATE TABLE IF NOT EXISTS recipe_tags (
		recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (recipe_id, tag_id)
	);

	CREATE TABLE IF NOT EXISTS recipe_ingredients (
		recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
		PRIMARY KEY (recipe_id, ingredient_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_user_created ON events(user_id, created_at);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
