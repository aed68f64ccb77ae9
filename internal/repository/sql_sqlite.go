package repository

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS wine_items (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		producer TEXT NOT NULL,
		vintage TEXT NOT NULL,
		alcohol TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		country TEXT NOT NULL,
		region TEXT NOT NULL,
		subregion TEXT NOT NULL,
		wine_type TEXT NOT NULL,
		category TEXT NOT NULL,
		price TEXT,
		bottle_size TEXT NOT NULL,
		ready_to_drink_year TEXT NOT NULL,
		best_before_year TEXT NOT NULL,
		storage_location TEXT NOT NULL,
		rating TEXT NOT NULL,
		remarks TEXT NOT NULL,
		front_image BLOB,
		back_image BLOB,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wine_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ts INTEGER NOT NULL,
		action TEXT NOT NULL,
		change_details TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		quantity_change INTEGER NOT NULL,
		price_at_time TEXT,
		item_id TEXT NOT NULL,
		item_name TEXT NOT NULL,
		item_producer TEXT NOT NULL,
		item_vintage TEXT NOT NULL,
		total_quantity INTEGER NOT NULL,
		total_value TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_ts ON wine_history(ts)`,
	`CREATE INDEX IF NOT EXISTS idx_history_item ON wine_history(item_id)`,
	`CREATE TABLE IF NOT EXISTS app_settings (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL
	)`,
}

// NewSQLiteStore opens (or creates) a SQLite database. dbPath is a file path such as
// "./data/cellar.db", or ":memory:" for a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer; also keeps :memory: on one connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := newSQLStore(db, dialect{
		name:         "sqlite",
		placeholder:  sq.Question,
		schema:       sqliteSchema,
		singleWriter: true,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
