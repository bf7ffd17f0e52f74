// Package store provides storage backends for Sprout.
//
// This file implements an SQLite-backed store for onboarding state.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/SproutFi/sprout/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveConversationState inserts or updates the state row for rec.UserID.
func (s *SQLiteStore) SaveConversationState(rec models.ConversationRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO conversation_states (user_id, conversation_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`,
		rec.UserID, rec.ConversationID, rec.Payload)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save conversation state for %s: %w", rec.UserID, err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "userID", rec.UserID)
	return nil
}

// GetConversationState returns the state row for userID, or nil if absent.
func (s *SQLiteStore) GetConversationState(userID string) (*models.ConversationRecord, error) {
	row := s.db.QueryRow(`
		SELECT user_id, conversation_id, payload, created_at, updated_at
		FROM conversation_states WHERE user_id = ?`, userID)

	var rec models.ConversationRecord
	err := row.Scan(&rec.UserID, &rec.ConversationID, &rec.Payload, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get conversation state for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore GetConversationState succeeded", "userID", userID)
	return &rec, nil
}

// DeleteConversationState removes the state row for userID.
func (s *SQLiteStore) DeleteConversationState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore DeleteConversationState succeeded", "userID", userID)
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
