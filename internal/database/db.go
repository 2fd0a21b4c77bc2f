package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn *sql.DB
}

type Config struct {
	Path string
}

func NewDB(config Config) (*DB, error) {
	conn, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS metrics_history (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		ts REAL NOT NULL,
		persons INTEGER NOT NULL,
		fps REAL NOT NULL,
		mean_kp_conf REAL NOT NULL,
		visible_ratio REAL NOT NULL,
		visible_count INTEGER NOT NULL,
		pose_conf REAL,
		angles TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_history_ts ON metrics_history(ts);
	`

	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
