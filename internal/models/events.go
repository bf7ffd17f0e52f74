// Package models defines the event envelopes streamed to the UI transport.
package models

// Event names emitted during one onboarding turn.
const (
	EventStepUpdate        = "step.update"
	EventTokenDelta        = "token.delta"
	EventMessageCompleted  = "message.completed"
	EventInteractionUpdate = "interaction.update"
	EventOnboardingStatus  = "onboarding.status"
	EventOnboardingError   = "onboarding.error"
)

// StepStatus values carried by step.update events.
type StepStatus string

const (
	StepStatusValidating StepStatus = "validating"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusPresented  StepStatus = "presented"
)

// Event is a typed envelope pushed to the real-time transport.
type Event struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}
