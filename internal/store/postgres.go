// Package store provides storage backends for Sprout.
//
// This file implements a PostgreSQL-backed store for onboarding state.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/SproutFi/sprout/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening PostgreSQL database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveConversationState inserts or updates the state row for rec.UserID.
func (s *PostgresStore) SaveConversationState(rec models.ConversationRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO conversation_states (user_id, conversation_id, payload, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			payload = EXCLUDED.payload,
			updated_at = NOW()`,
		rec.UserID, rec.ConversationID, rec.Payload)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save conversation state for %s: %w", rec.UserID, err)
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "userID", rec.UserID)
	return nil
}

// GetConversationState returns the state row for userID, or nil if absent.
func (s *PostgresStore) GetConversationState(userID string) (*models.ConversationRecord, error) {
	row := s.db.QueryRow(`
		SELECT user_id, conversation_id, payload, created_at, updated_at
		FROM conversation_states WHERE user_id = $1`, userID)

	var rec models.ConversationRecord
	err := row.Scan(&rec.UserID, &rec.ConversationID, &rec.Payload, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get conversation state for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore GetConversationState succeeded", "userID", userID)
	return &rec, nil
}

// DeleteConversationState removes the state row for userID.
func (s *PostgresStore) DeleteConversationState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_states WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation state for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore DeleteConversationState succeeded", "userID", userID)
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
