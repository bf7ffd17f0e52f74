// Package flow provides concrete implementations of state management.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SproutFi/sprout/internal/models"
	"github.com/SproutFi/sprout/internal/store"
)

// StateManager loads and persists onboarding profile state.
type StateManager interface {
	// GetProfileState returns the persisted state for a user, or nil if the
	// user has no saved conversation.
	GetProfileState(ctx context.Context, userID string) (*models.ProfileState, error)
	// SaveProfileState persists the given state.
	SaveProfileState(ctx context.Context, state *models.ProfileState) error
	// ResetProfileState removes any persisted state for a user.
	ResetProfileState(ctx context.Context, userID string) error
}

// StoreBasedStateManager implements StateManager using a Store backend.
// Profile state is persisted as a JSON payload keyed by user ID.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetProfileState retrieves the persisted profile state for a user.
func (sm *StoreBasedStateManager) GetProfileState(ctx context.Context, userID string) (*models.ProfileState, error) {
	slog.Debug("StateManager.GetProfileState", "userID", userID)
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}

	rec, err := sm.store.GetConversationState(userID)
	if err != nil {
		slog.Error("StateManager.GetProfileState store error", "error", err, "userID", userID)
		return nil, err
	}
	if rec == nil {
		slog.Debug("StateManager.GetProfileState not found", "userID", userID)
		return nil, nil
	}

	state, err := models.ProfileStateFromJSON(rec.Payload)
	if err != nil {
		slog.Error("StateManager.GetProfileState decode error", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to decode profile state for %s: %w", userID, err)
	}
	if state.UserID != userID {
		slog.Error("StateManager.GetProfileState user mismatch", "userID", userID, "payloadUserID", state.UserID)
		return nil, models.ErrUserIDMismatch
	}

	slog.Debug("StateManager.GetProfileState found", "userID", userID, "step", state.CurrentFlowStep)
	return state, nil
}

// SaveProfileState persists the profile state, stamping UpdatedAt.
func (sm *StoreBasedStateManager) SaveProfileState(ctx context.Context, state *models.ProfileState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil profile state")
	}
	slog.Debug("StateManager.SaveProfileState", "userID", state.UserID, "step", state.CurrentFlowStep)
	if err := state.Validate(); err != nil {
		slog.Error("StateManager.SaveProfileState validation failed", "error", err, "userID", state.UserID)
		return err
	}

	state.UpdatedAt = time.Now()
	payload, err := state.ToJSON()
	if err != nil {
		slog.Error("StateManager.SaveProfileState encode error", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to encode profile state for %s: %w", state.UserID, err)
	}

	rec := models.ConversationRecord{
		UserID:         state.UserID,
		ConversationID: state.ConversationID,
		Payload:        payload,
		CreatedAt:      state.CreatedAt,
		UpdatedAt:      state.UpdatedAt,
	}
	if err := sm.store.SaveConversationState(rec); err != nil {
		slog.Error("StateManager.SaveProfileState store error", "error", err, "userID", state.UserID)
		return err
	}

	slog.Debug("StateManager.SaveProfileState succeeded", "userID", state.UserID, "step", state.CurrentFlowStep)
	return nil
}

// ResetProfileState removes any persisted state for a user.
func (sm *StoreBasedStateManager) ResetProfileState(ctx context.Context, userID string) error {
	slog.Debug("StateManager.ResetProfileState", "userID", userID)
	if userID == "" {
		return models.ErrEmptyUserID
	}
	if err := sm.store.DeleteConversationState(userID); err != nil {
		slog.Error("StateManager.ResetProfileState store error", "error", err, "userID", userID)
		return err
	}
	slog.Debug("StateManager.ResetProfileState succeeded", "userID", userID)
	return nil
}
