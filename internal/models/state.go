// Package models defines the per-conversation onboarding session state.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxConversationHistory caps the retained conversation turns; the oldest
// entries are evicted once the cap is exceeded.
const MaxConversationHistory = 50

// Error variables for state construction and consistency checks.
var (
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrUserIDMismatch     = errors.New("profile user id does not match state user id")
	ErrMissingUserContext = errors.New("state has no user context")
)

// ConversationTurn is one user/agent exchange.
type ConversationTurn struct {
	TurnNumber    int       `json:"turn_number"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	Timestamp     time.Time `json:"timestamp"`
}

// ProfileState is the mutable aggregate for one user's onboarding session.
// It is exclusively owned by one conversation: the caller guarantees exactly
// one in-flight turn at a time, so no internal locking is performed.
type ProfileState struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`

	CurrentFlowStep FlowStep `json:"current_flow_step"`
	TurnNumber      int      `json:"turn_number"`

	UserContext *UserProfile `json:"user_context"`

	ConversationHistory []ConversationTurn `json:"conversation_history"`
	LastUserMessage     string             `json:"last_user_message,omitempty"`
	LastAgentResponse   string             `json:"last_agent_response,omitempty"`

	// ReadyForCompletion, once set, is never reset within the same
	// conversation. Mutate it through MarkReadyForCompletion only.
	ReadyForCompletion bool `json:"ready_for_completion"`

	// Transient "what is being asked right now" fields, overwritten each turn.
	CurrentInteractionType InteractionType `json:"current_interaction_type"`
	CurrentChoices         []Choice        `json:"current_choices,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfileState creates a fresh session at the presentation step.
func NewProfileState(userID string) (*ProfileState, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	now := time.Now()
	state := &ProfileState{
		ConversationID:         uuid.NewString(),
		UserID:                 userID,
		CurrentFlowStep:        StepPresentation,
		UserContext:            NewUserProfile(userID),
		CurrentInteractionType: InteractionFreeText,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}

// Validate checks the state's internal consistency.
func (s *ProfileState) Validate() error {
	if s.UserID == "" {
		return ErrEmptyUserID
	}
	if s.UserContext == nil {
		return ErrMissingUserContext
	}
	if s.UserContext.UserID != s.UserID {
		return fmt.Errorf("%w: state=%s profile=%s", ErrUserIDMismatch, s.UserID, s.UserContext.UserID)
	}
	return nil
}

// AddConversationTurn appends a user/agent exchange, increments the turn
// counter, and evicts the oldest entries beyond MaxConversationHistory.
// TurnNumber keeps incrementing regardless of eviction.
func (s *ProfileState) AddConversationTurn(userMessage, agentResponse string) {
	s.TurnNumber++
	s.ConversationHistory = append(s.ConversationHistory, ConversationTurn{
		TurnNumber:    s.TurnNumber,
		UserMessage:   userMessage,
		AgentResponse: agentResponse,
		Timestamp:     time.Now(),
	})
	if overflow := len(s.ConversationHistory) - MaxConversationHistory; overflow > 0 {
		s.ConversationHistory = s.ConversationHistory[overflow:]
	}
	s.UpdatedAt = time.Now()
}

// MarkReadyForCompletion latches the completion flag and the profile's
// orchestrator handoff flag together, so the pair can never disagree. There
// is deliberately no way to clear either.
func (s *ProfileState) MarkReadyForCompletion() {
	s.ReadyForCompletion = true
	if s.UserContext != nil {
		s.UserContext.ReadyForOrchestrator = true
	}
	s.UpdatedAt = time.Now()
}

// ToJSON serializes the state for storage.
func (s *ProfileState) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile state: %w", err)
	}
	return string(data), nil
}

// ProfileStateFromJSON deserializes a stored state.
func ProfileStateFromJSON(data string) (*ProfileState, error) {
	var state ProfileState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile state: %w", err)
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return &state, nil
}

// ConversationRecord is the persisted form of a ProfileState, keyed by user.
type ConversationRecord struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Payload        string    `json:"payload"` // serialized ProfileState
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
