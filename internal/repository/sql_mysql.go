package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
)

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared inline.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS wine_items (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(36) NOT NULL UNIQUE,
		name TEXT NOT NULL,
		producer TEXT NOT NULL,
		vintage VARCHAR(64) NOT NULL,
		alcohol TEXT NOT NULL,
		quantity INT NOT NULL,
		country TEXT NOT NULL,
		region TEXT NOT NULL,
		subregion TEXT NOT NULL,
		wine_type TEXT NOT NULL,
		category TEXT NOT NULL,
		price VARCHAR(64) NULL,
		bottle_size VARCHAR(32) NOT NULL,
		ready_to_drink_year VARCHAR(16) NOT NULL,
		best_before_year VARCHAR(16) NOT NULL,
		storage_location TEXT NOT NULL,
		rating VARCHAR(32) NOT NULL,
		remarks TEXT NOT NULL,
		front_image LONGBLOB NULL,
		back_image LONGBLOB NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	) CHARACTER SET utf8mb4`,
	`CREATE TABLE IF NOT EXISTS wine_history (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(36) NOT NULL UNIQUE,
		ts BIGINT NOT NULL,
		action VARCHAR(16) NOT NULL,
		change_details TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		quantity_change INT NOT NULL,
		price_at_time VARCHAR(64) NULL,
		item_id VARCHAR(36) NOT NULL,
		item_name TEXT NOT NULL,
		item_producer TEXT NOT NULL,
		item_vintage VARCHAR(64) NOT NULL,
		total_quantity INT NOT NULL,
		total_value VARCHAR(64) NULL,
		INDEX idx_history_ts (ts),
		INDEX idx_history_item (item_id)
	) CHARACTER SET utf8mb4`,
	`CREATE TABLE IF NOT EXISTS app_settings (
		name VARCHAR(64) PRIMARY KEY,
		body MEDIUMTEXT NOT NULL
	) CHARACTER SET utf8mb4`,
}

// NewMySQLStore connects to MySQL.
// dsn format: "user:password@tcp(host:port)/dbname?parseTime=true"
func NewMySQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := newSQLStore(db, dialect{
		name:        "mysql",
		placeholder: sq.Question,
		schema:      mysqlSchema,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
