package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore keeps records as JSON documents in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS character_records (
			character_id TEXT NOT NULL,
			world_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			record_json TEXT NOT NULL,
			last_updated DATETIME NOT NULL,
			PRIMARY KEY (character_id, world_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_character_records_world ON character_records(world_id);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the record for key.
func (s *SQLiteStore) Load(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT record_json FROM character_records WHERE character_id = ? AND world_id = ?`,
		key.CharacterID, key.WorldID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return NewRecord(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record %s: %w", key, err)
	}
	return decodeJSON([]byte(doc))
}

// Save upserts the record for key.
func (s *SQLiteStore) Save(ctx context.Context, key Key, rec *Record) error {
	if err := key.Validate(); err != nil {
		return err
	}
	data, err := encodeJSON(rec)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO character_records (character_id, world_id, version, record_json, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(character_id, world_id) DO UPDATE SET
			version=excluded.version,
			record_json=excluded.record_json,
			last_updated=excluded.last_updated
	`
	if _, err := s.db.ExecContext(ctx, query, key.CharacterID, key.WorldID, CurrentVersion, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save record %s: %w", key, err)
	}
	return nil
}

// Characters lists the character ids that have a record in worldID.
func (s *SQLiteStore) Characters(ctx context.Context, worldID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT character_id FROM character_records WHERE world_id = ? ORDER BY character_id`, worldID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
