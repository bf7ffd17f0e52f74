// Package flow provides the per-turn response processor.
package flow

import (
	"log/slog"

	"github.com/SproutFi/sprout/internal/models"
)

// closingMessage is returned when a terminal step with no successor receives
// further input.
const closingMessage = "You're all set! I'll take it from here and start putting your plan together."

// Processor orchestrates validation, transition, and next-step lookup for
// one user response.
type Processor struct {
	registry *Registry
}

// NewProcessor creates a processor over an injected step registry.
func NewProcessor(registry *Registry) *Processor {
	return &Processor{registry: registry}
}

// ProcessUserResponse runs the current step's validator, resolves the next
// step, and renders its message. On validation failure the current step is
// returned unchanged so the UI re-prompts with the step's own affordances.
// A nil next step means the conversation has nothing further to present.
func (p *Processor) ProcessUserResponse(state *models.ProfileState, userResponse string) (string, *models.FlowStep, models.InteractionType, []models.Choice) {
	def := p.registry.Definition(state.CurrentFlowStep)

	if def.Validate != nil {
		if ok, errMessage := def.Validate(userResponse, state); !ok {
			slog.Debug("flow.ProcessUserResponse: validation failed, re-prompting",
				"step", def.ID, "userID", state.UserID)
			current := def.ID
			return errMessage, &current, def.InteractionType, def.Choices
		}
	}

	next, ok := def.Next.Resolve(userResponse, state)
	if !ok {
		slog.Debug("flow.ProcessUserResponse: terminal step, no successor", "step", def.ID, "userID", state.UserID)
		return closingMessage, nil, models.InteractionFreeText, nil
	}

	nextDef := p.registry.Definition(next)
	slog.Debug("flow.ProcessUserResponse: advancing",
		"from", def.ID, "to", nextDef.ID, "userID", state.UserID)
	return nextDef.Message.Resolve(state), &next, nextDef.InteractionType, nextDef.Choices
}
