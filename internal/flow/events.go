// Package flow provides the typed event emitters for the turn stream.
package flow

import (
	"github.com/SproutFi/sprout/internal/models"
)

// NewStepUpdateEvent builds a step.update envelope.
func NewStepUpdateEvent(status models.StepStatus, step models.FlowStep) models.Event {
	return models.Event{
		Event: models.EventStepUpdate,
		Data: map[string]any{
			"status":  string(status),
			"step_id": string(step),
		},
	}
}

// NewTokenDeltaEvent builds a token.delta envelope for one streamed chunk.
func NewTokenDeltaEvent(text string) models.Event {
	return models.Event{
		Event: models.EventTokenDelta,
		Data:  map[string]any{"text": text},
	}
}

// NewMessageCompletedEvent builds the once-per-turn message.completed envelope.
func NewMessageCompletedEvent(text string) models.Event {
	return models.Event{
		Event: models.EventMessageCompleted,
		Data:  map[string]any{"text": text},
	}
}

// NewInteractionUpdateEvent builds an interaction.update envelope from the
// state's current interaction. Single-choice steps with exactly two options
// are rendered as a binary interaction with primary/secondary choices;
// multi-choice steps carry selection bounds.
func NewInteractionUpdateEvent(state *models.ProfileState) models.Event {
	data := map[string]any{
		"type":    string(state.CurrentInteractionType),
		"step_id": string(state.CurrentFlowStep),
	}

	switch state.CurrentInteractionType {
	case models.InteractionSingleChoice:
		if len(state.CurrentChoices) == 2 {
			data["type"] = "binary"
			data["primary_choice"] = state.CurrentChoices[0]
			data["secondary_choice"] = state.CurrentChoices[1]
		} else {
			data["choices"] = state.CurrentChoices
		}
	case models.InteractionMultiChoice:
		data["choices"] = state.CurrentChoices
		data["multi_min"] = 1
		data["multi_max"] = len(state.CurrentChoices)
	}

	return models.Event{Event: models.EventInteractionUpdate, Data: data}
}

// NewOnboardingStatusEvent builds an onboarding.status envelope.
func NewOnboardingStatusEvent(status string) models.Event {
	return models.Event{
		Event: models.EventOnboardingStatus,
		Data:  map[string]any{"status": status},
	}
}

// NewOnboardingErrorEvent builds an onboarding.error envelope. The core flow
// never emits this itself; it exists as a contract point for callers.
func NewOnboardingErrorEvent(step models.FlowStep, message, code string) models.Event {
	return models.Event{
		Event: models.EventOnboardingError,
		Data: map[string]any{
			"step_id": string(step),
			"message": message,
			"code":    code,
		},
	}
}
