// Package flow provides the top-level onboarding agent.
//
// One call to ProcessMessageWithEvents produces one turn: an ordered stream
// of events the caller forwards to its real-time transport. The stream is
// finite and single-consumption; a new turn requires a new call with the
// post-turn state. Closing the stream is the end-of-turn signal.
package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/SproutFi/sprout/internal/models"
)

// skipTokens are the exact (trimmed, lower-cased) phrases that trigger the
// skip fast-path.
var skipTokens = map[string]bool{
	"skip":          true,
	"not now":       true,
	"rather not":    true,
	"prefer not":    true,
	"no":            true,
	"not right now": true,
}

// nonSkippableSteps never take the skip fast-path, even for an exact skip
// phrase; name capture and the full-path date of birth are required.
var nonSkippableSteps = map[models.FlowStep]bool{
	models.StepPresentation: true,
	models.Step2Dob:         true,
}

// OnboardingAgent orchestrates one onboarding turn per invocation. The state
// it is handed is exclusively owned for the duration of the turn; exclusivity
// is the caller's responsibility.
type OnboardingAgent struct {
	registry  *Registry
	processor *Processor
	chunkMin  int
	chunkMax  int
}

// NewOnboardingAgent creates an agent over an injected step registry.
func NewOnboardingAgent(registry *Registry) *OnboardingAgent {
	return &OnboardingAgent{
		registry:  registry,
		processor: NewProcessor(registry),
		chunkMin:  DefaultChunkMinWords,
		chunkMax:  DefaultChunkMaxWords,
	}
}

// ProcessMessageWithEvents runs one turn and streams its events in order.
// Exactly one of three paths runs: initial presentation, skip fast-path, or
// the general validate-advance-respond path. The returned channel is closed
// when the turn is finished; callers may stop consuming early via ctx, in
// which case state mutations already performed remain in place.
func (a *OnboardingAgent) ProcessMessageWithEvents(ctx context.Context, userID, message string, state *models.ProfileState) <-chan models.Event {
	events := make(chan models.Event)
	go func() {
		defer close(events)

		emit := func(ev models.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		switch {
		case a.isFirstContact(message, state):
			a.runInitialPresentation(emit, state)
		case a.isSkipRequest(message, state):
			a.runSkipFastPath(emit, message, state)
		default:
			a.runGeneralPath(emit, userID, message, state)
		}
	}()
	return events
}

// ProcessMessage is a synchronous convenience wrapper that drains the event
// stream and returns the turn's completed response text.
func (a *OnboardingAgent) ProcessMessage(ctx context.Context, userID, message string, state *models.ProfileState) (string, error) {
	var final string
	for ev := range a.ProcessMessageWithEvents(ctx, userID, message, state) {
		if ev.Event == models.EventMessageCompleted {
			if text, ok := ev.Data["text"].(string); ok {
				final = text
			}
		}
	}
	return final, ctx.Err()
}

// isFirstContact reports whether this turn should present the opening step:
// a freshly constructed state and an empty incoming message.
func (a *OnboardingAgent) isFirstContact(message string, state *models.ProfileState) bool {
	return state.CurrentFlowStep == models.StepPresentation &&
		len(state.ConversationHistory) == 0 &&
		strings.TrimSpace(message) == ""
}

// isSkipRequest reports whether the message is a recognized skip phrase on a
// skippable step.
func (a *OnboardingAgent) isSkipRequest(message string, state *models.ProfileState) bool {
	if nonSkippableSteps[state.CurrentFlowStep] {
		return false
	}
	return skipTokens[strings.ToLower(strings.TrimSpace(message))]
}

// runInitialPresentation presents the opening step to a brand-new session.
func (a *OnboardingAgent) runInitialPresentation(emit func(models.Event) bool, state *models.ProfileState) {
	slog.Debug("OnboardingAgent: initial presentation", "userID", state.UserID, "conversationID", state.ConversationID)

	def := a.registry.Definition(models.StepPresentation)
	message := def.Message.Resolve(state)
	state.CurrentInteractionType = def.InteractionType
	state.CurrentChoices = def.Choices
	state.LastAgentResponse = message

	if !emit(NewStepUpdateEvent(models.StepStatusPresented, models.StepPresentation)) {
		return
	}
	if !a.streamText(emit, message) {
		return
	}
	if !emit(NewMessageCompletedEvent(message)) {
		return
	}
	if def.InteractionType != models.InteractionFreeText {
		emit(NewInteractionUpdateEvent(state))
	}
}

// runSkipFastPath advances past a skippable step. The transition function is
// called with an empty response, i.e. "no answer, take the default branch".
func (a *OnboardingAgent) runSkipFastPath(emit func(models.Event) bool, message string, state *models.ProfileState) {
	oldStep := state.CurrentFlowStep
	wasReady := state.ReadyForCompletion
	slog.Debug("OnboardingAgent: skip fast-path", "userID", state.UserID, "step", oldStep)

	next := DetermineNextStep("", state)
	def := a.registry.Definition(next)
	responseText := def.Message.Resolve(state)

	state.CurrentFlowStep = next
	state.CurrentInteractionType = def.InteractionType
	state.CurrentChoices = def.Choices
	state.LastUserMessage = message
	state.LastAgentResponse = responseText
	state.AddConversationTurn(message, responseText)

	if next != oldStep {
		if !emit(NewStepUpdateEvent(models.StepStatusCompleted, oldStep)) {
			return
		}
	}
	if !a.streamText(emit, responseText) {
		return
	}
	if !emit(NewMessageCompletedEvent(responseText)) {
		return
	}
	if !emit(NewStepUpdateEvent(models.StepStatusPresented, next)) {
		return
	}
	if state.CurrentInteractionType != models.InteractionFreeText {
		if !emit(NewInteractionUpdateEvent(state)) {
			return
		}
	}
	// The status event fires once, on the turn the latch flips.
	if state.ReadyForCompletion && !wasReady {
		emit(NewOnboardingStatusEvent("done"))
	}
}

// runGeneralPath is the default validate-advance-respond path.
func (a *OnboardingAgent) runGeneralPath(emit func(models.Event) bool, userID, message string, state *models.ProfileState) {
	oldStep := state.CurrentFlowStep
	wasReady := state.ReadyForCompletion
	state.LastUserMessage = message

	if !emit(NewStepUpdateEvent(models.StepStatusValidating, oldStep)) {
		return
	}

	responseText, next, interactionType, choices := a.processor.ProcessUserResponse(state, message)

	state.AddConversationTurn(message, responseText)
	state.LastAgentResponse = responseText

	if next != nil {
		state.CurrentFlowStep = *next
		state.CurrentInteractionType = interactionType
		state.CurrentChoices = choices
		slog.Debug("OnboardingAgent: profile snapshot",
			"userID", userID,
			"step", *next,
			"preferredName", state.UserContext.PreferredName,
			"age", state.UserContext.Age,
			"city", state.UserContext.City,
			"incomeBand", state.UserContext.IncomeBand)

		if next.IsTerminal() {
			state.MarkReadyForCompletion()
		}
		if *next != oldStep {
			if !emit(NewStepUpdateEvent(models.StepStatusCompleted, oldStep)) {
				return
			}
		}
	}

	if !a.streamText(emit, responseText) {
		return
	}
	if !emit(NewMessageCompletedEvent(responseText)) {
		return
	}
	if !emit(NewStepUpdateEvent(models.StepStatusPresented, state.CurrentFlowStep)) {
		return
	}
	if state.CurrentInteractionType != models.InteractionFreeText {
		if !emit(NewInteractionUpdateEvent(state)) {
			return
		}
	}
	if state.ReadyForCompletion && !wasReady {
		emit(NewOnboardingStatusEvent("done"))
	}
}

// streamText emits one token.delta per chunk of text.
func (a *OnboardingAgent) streamText(emit func(models.Event) bool, text string) bool {
	for _, chunk := range ChunkText(text, a.chunkMin, a.chunkMax) {
		if !emit(NewTokenDeltaEvent(chunk)) {
			return false
		}
	}
	return true
}
