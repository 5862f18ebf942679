// Package storage provides SQLite-backed durable client state: the session
// key-value entries and a cache of the last fetched conversation list.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/devmate-dev/devmate/internal/backend"
)

// Store provides SQLite-backed persistence.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		messages TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Store) Get(key string) (value string, ok bool, err error) {
	row := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key)
	err = row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scan %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes values in one transaction.
func (s *Store) Set(values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for key, value := range values {
		if _, err := tx.Exec(
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes keys; absent keys are ignored.
func (s *Store) Delete(keys ...string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range keys {
		if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReplaceConversations overwrites the cached conversation list, keeping the
// server's order.
func (s *Store) ReplaceConversations(convs []backend.Conversation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	for i, c := range convs {
		messages, err := json.Marshal(c.Messages)
		if err != nil {
			return fmt.Errorf("marshal messages for %s: %w", c.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO conversations (id, position, messages, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			c.ID, i, string(messages), c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert conversation %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListConversations returns the cached conversation list in server order.
func (s *Store) ListConversations() ([]backend.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, messages, created_at, updated_at
		 FROM conversations
		 ORDER BY position ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []backend.Conversation
	for rows.Next() {
		var (
			c        backend.Conversation
			messages string
		)
		if err := rows.Scan(&c.ID, &messages, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(messages), &c.Messages); err != nil {
			return nil, fmt.Errorf("decode messages for %s: %w", c.ID, err)
		}
		convs = append(convs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return convs, nil
}

// ClearConversations drops the cache. Used on logout.
func (s *Store) ClearConversations() error {
	if _, err := s.db.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	return nil
}
