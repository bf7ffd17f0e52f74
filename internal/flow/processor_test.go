package flow

import (
	"testing"

	"github.com/SproutFi/sprout/internal/models"
)

func TestProcessUserResponseAdvances(t *testing.T) {
	registry := NewRegistry(nil)
	p := NewProcessor(registry)
	state := newTestState(t)

	msg, next, interaction, choices := p.ProcessUserResponse(state, "Alex")
	if next == nil || *next != models.Step1Choice {
		t.Fatalf("expected advance to step 1, got %v", next)
	}
	if msg == "" {
		t.Error("expected the next step's message")
	}
	if interaction != models.InteractionSingleChoice || len(choices) != 2 {
		t.Errorf("expected step 1 affordances, got %s with %d choices", interaction, len(choices))
	}
}

func TestProcessUserResponseValidationFailureKeepsStep(t *testing.T) {
	registry := NewRegistry(nil)
	p := NewProcessor(registry)
	state := newTestState(t)
	state.CurrentFlowStep = models.Step2Dob

	msg, next, interaction, _ := p.ProcessUserResponse(state, "not a date")
	if next == nil || *next != models.Step2Dob {
		t.Fatalf("expected to stay at dob step on invalid input, got %v", next)
	}
	if msg == "" {
		t.Error("expected a re-prompt message")
	}
	if interaction != models.InteractionFreeText {
		t.Errorf("expected the current step's interaction type, got %s", interaction)
	}
}

func TestProcessUserResponseTerminalStep(t *testing.T) {
	registry := NewRegistry(nil)
	p := NewProcessor(registry)
	state := newTestState(t)
	state.CurrentFlowStep = models.StepComplete

	msg, next, _, choices := p.ProcessUserResponse(state, "anything else?")
	if next != nil {
		t.Errorf("expected no successor from a terminal step, got %v", *next)
	}
	if msg != closingMessage {
		t.Errorf("expected closing message, got %q", msg)
	}
	if choices != nil {
		t.Errorf("expected no choices, got %v", choices)
	}
}
