// Package store provides storage backends for Sprout.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL stores for persistent onboarding state.
package store

import (
	"sync"
	"time"

	"github.com/SproutFi/sprout/internal/models"
)

// Store defines the persistence operations for onboarding conversation state.
type Store interface {
	// SaveConversationState inserts or updates the state for a user.
	SaveConversationState(rec models.ConversationRecord) error
	// GetConversationState returns the state for a user, or nil if none exists.
	GetConversationState(userID string) (*models.ConversationRecord, error)
	// DeleteConversationState removes the state for a user. Deleting a
	// non-existent record is not an error.
	DeleteConversationState(userID string) error
	// Close releases any resources held by the store.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the database connection string. For SQLite this is a file path;
	// for PostgreSQL a connection URL.
	DSN string
}

// Option configures store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// InMemoryStore is a simple in-memory store keyed by user ID.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.ConversationRecord
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]models.ConversationRecord)}
}

// SaveConversationState inserts or updates the record for rec.UserID.
func (s *InMemoryStore) SaveConversationState(rec models.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.records[rec.UserID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.UserID] = rec
	return nil
}

// GetConversationState returns the record for userID, or nil if absent.
func (s *InMemoryStore) GetConversationState(userID string) (*models.ConversationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// DeleteConversationState removes the record for userID.
func (s *InMemoryStore) DeleteConversationState(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
