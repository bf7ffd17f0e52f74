package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/SproutFi/sprout/internal/models"
)

func newTestAgent() *OnboardingAgent {
	return NewOnboardingAgent(NewRegistryWithValidators(NewValidatorsWithClock(nil, fixedNow)))
}

func runTurn(t *testing.T, agent *OnboardingAgent, state *models.ProfileState, message string) []models.Event {
	t.Helper()
	var events []models.Event
	for ev := range agent.ProcessMessageWithEvents(context.Background(), state.UserID, message, state) {
		events = append(events, ev)
	}
	return events
}

func eventNames(events []models.Event) []string {
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Event
	}
	return names
}

func findEvent(events []models.Event, name string) (models.Event, bool) {
	for _, ev := range events {
		if ev.Event == name {
			return ev, true
		}
	}
	return models.Event{}, false
}

func completedText(t *testing.T, events []models.Event) string {
	t.Helper()
	ev, ok := findEvent(events, models.EventMessageCompleted)
	if !ok {
		t.Fatal("turn emitted no message.completed event")
	}
	text, _ := ev.Data["text"].(string)
	return text
}

func TestAgentInitialPresentation(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)

	events := runTurn(t, agent, state, "")

	if state.CurrentFlowStep != models.StepPresentation {
		t.Errorf("first contact must stay at presentation, got %s", state.CurrentFlowStep)
	}
	first, ok := findEvent(events, models.EventStepUpdate)
	if !ok || first.Data["status"] != string(models.StepStatusPresented) {
		t.Errorf("expected a presented step.update, got %v", eventNames(events))
	}
	text := completedText(t, events)
	if !strings.Contains(text, "what should I call you") {
		t.Errorf("expected the opening question, got %q", text)
	}
	// token deltas must concatenate to the completed message
	var streamed strings.Builder
	for _, ev := range events {
		if ev.Event == models.EventTokenDelta {
			streamed.WriteString(ev.Data["text"].(string))
		}
	}
	if streamed.String() != text {
		t.Errorf("token deltas do not reassemble the message:\n got %q\nwant %q", streamed.String(), text)
	}
}

func TestAgentFullGuidedPath(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)

	turns := []struct {
		message  string
		wantStep models.FlowStep
	}{
		{"Alex", models.Step1Choice},
		{"ask me the questions", models.Step2Dob},
		{"1990-05-10", models.Step3Location},
		{"Austin, Texas", models.Step4Housing},
		{"1500", models.Step4MoneyFeelings},
		{"anxious", models.Step5IncomeDecision},
		{"exact", models.Step5aIncomeExact},
		{"85000", models.Step6ConnectAccounts},
		{"later", models.StepComplete},
	}
	for _, turn := range turns {
		runTurn(t, agent, state, turn.message)
		if state.CurrentFlowStep != turn.wantStep {
			t.Fatalf("after %q: step %s, want %s", turn.message, state.CurrentFlowStep, turn.wantStep)
		}
	}

	if !state.ReadyForCompletion || !state.UserContext.ReadyForOrchestrator {
		t.Error("completed flow must be marked ready for handoff")
	}
	p := state.UserContext
	if p.PreferredName != "Alex" || p.Age != 35 || p.City != "Austin" ||
		p.Region != "Texas" || p.RentMortgage != "1500" || p.Income != "85000" {
		t.Errorf("profile incomplete after guided path: %+v", p)
	}
	if len(p.MoneyFeelings) != 1 || p.MoneyFeelings[0] != "anxious" {
		t.Errorf("expected money feeling recorded, got %v", p.MoneyFeelings)
	}
}

func TestAgentOpenChatQuickPath(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)

	runTurn(t, agent, state, "Sam")
	if state.CurrentFlowStep != models.Step1Choice {
		t.Fatalf("expected step 1, got %s", state.CurrentFlowStep)
	}

	runTurn(t, agent, state, "skip to open chat")
	if state.CurrentFlowStep != models.StepDobQuick {
		t.Fatalf("expected quick dob step, got %s", state.CurrentFlowStep)
	}

	events := runTurn(t, agent, state, "1995-03-20")
	if state.CurrentFlowStep != models.StepSubscriptionNotice {
		t.Fatalf("expected subscription notice after open-chat request, got %s", state.CurrentFlowStep)
	}
	if !strings.Contains(completedText(t, events), "Sprout Plus") {
		t.Errorf("expected subscription notice text, got %q", completedText(t, events))
	}

	runTurn(t, agent, state, "sounds good")
	if state.CurrentFlowStep != models.StepComplete {
		t.Fatalf("expected completion after the notice, got %s", state.CurrentFlowStep)
	}
	if !state.ReadyForCompletion {
		t.Error("quick path completion must latch the ready flag")
	}
}

func TestAgentUnder18Terminates(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)
	state.CurrentFlowStep = models.Step2Dob
	state.UserContext.PreferredName = "Kid"

	events := runTurn(t, agent, state, "2010-01-01")
	if state.CurrentFlowStep != models.StepTerminatedUnder18 {
		t.Fatalf("expected under-18 termination, got %s", state.CurrentFlowStep)
	}
	if !strings.Contains(completedText(t, events), "18 and older") {
		t.Errorf("expected age-gate message, got %q", completedText(t, events))
	}
}

func TestAgentSkipFastPathOnSkippableStep(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)
	state.CurrentFlowStep = models.Step3Location
	state.UserContext.PreferredName = "Alex"

	events := runTurn(t, agent, state, "skip")
	if state.CurrentFlowStep != models.Step4Housing {
		t.Fatalf("expected skip to advance past location, got %s", state.CurrentFlowStep)
	}
	if state.UserContext.City != "" {
		t.Errorf("skipped step must not record a value, got %q", state.UserContext.City)
	}
	// The fast path never validates, so no validating status is emitted.
	for _, ev := range events {
		if ev.Event == models.EventStepUpdate && ev.Data["status"] == string(models.StepStatusValidating) {
			t.Error("skip fast-path must not emit a validating step.update")
		}
	}
}

func TestAgentSkipIsIgnoredOnNonSkippableStep(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)
	state.CurrentFlowStep = models.Step2Dob
	state.UserContext.PreferredName = "Alex"

	events := runTurn(t, agent, state, "skip")
	// "skip" is not a parseable date, so the general path re-prompts and the
	// step does not advance.
	if state.CurrentFlowStep != models.Step2Dob {
		t.Fatalf("non-skippable step advanced on skip, got %s", state.CurrentFlowStep)
	}
	first, ok := findEvent(events, models.EventStepUpdate)
	if !ok || first.Data["status"] != string(models.StepStatusValidating) {
		t.Error("expected the general path (validating status) for a non-skippable skip")
	}
}

func TestAgentEventOrderOnAdvance(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)

	events := runTurn(t, agent, state, "Alex")
	names := eventNames(events)

	indexOf := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		return -1
	}
	validating := 0 // first event
	if names[validating] != models.EventStepUpdate {
		t.Fatalf("expected step.update first, got %v", names)
	}
	completed := indexOf(models.EventMessageCompleted)
	interaction := indexOf(models.EventInteractionUpdate)
	if completed == -1 || interaction == -1 || interaction < completed {
		t.Errorf("expected interaction.update after message.completed: %v", names)
	}
	// Step 1 has exactly two choices, so the interaction renders as binary.
	ev, _ := findEvent(events, models.EventInteractionUpdate)
	if ev.Data["type"] != "binary" {
		t.Errorf("expected binary interaction for two choices, got %v", ev.Data["type"])
	}
	if _, ok := ev.Data["primary_choice"]; !ok {
		t.Error("binary interaction must carry a primary choice")
	}
}

func TestAgentStatusEventOnCompletion(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)
	state.CurrentFlowStep = models.Step6ConnectAccounts
	state.UserContext.PreferredName = "Alex"

	events := runTurn(t, agent, state, "later")
	if _, ok := findEvent(events, models.EventOnboardingStatus); !ok {
		t.Errorf("expected onboarding.status once ready, got %v", eventNames(events))
	}

	// The status event marks the latch flipping; later turns on the finished
	// conversation must not repeat it.
	events = runTurn(t, agent, state, "thanks!")
	if _, ok := findEvent(events, models.EventOnboardingStatus); ok {
		t.Errorf("onboarding.status repeated after completion: %v", eventNames(events))
	}
}

func TestAgentSkipFastPathCompletionSetsHandoffFlags(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)
	state.CurrentFlowStep = models.StepDobQuick
	state.UserContext.PreferredName = "Sam"

	events := runTurn(t, agent, state, "skip")
	if state.CurrentFlowStep != models.StepComplete {
		t.Fatalf("expected skipped quick dob to complete, got %s", state.CurrentFlowStep)
	}
	if !state.ReadyForCompletion || !state.UserContext.ReadyForOrchestrator {
		t.Error("completion via the fast path must set both handoff flags")
	}
	if _, ok := findEvent(events, models.EventOnboardingStatus); !ok {
		t.Errorf("expected onboarding.status on fast-path completion, got %v", eventNames(events))
	}
}

func TestAgentProcessMessageSyncWrapper(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)

	text, err := agent.ProcessMessage(context.Background(), state.UserID, "Alex", state)
	if err != nil {
		t.Fatalf("ProcessMessage failed: %v", err)
	}
	if !strings.Contains(text, "Alex") {
		t.Errorf("expected the step 1 greeting, got %q", text)
	}
	if state.CurrentFlowStep != models.Step1Choice {
		t.Errorf("expected state advanced, got %s", state.CurrentFlowStep)
	}
}

func TestAgentRecordsConversationHistory(t *testing.T) {
	agent := newTestAgent()
	state := newTestState(t)

	runTurn(t, agent, state, "Alex")
	if len(state.ConversationHistory) != 1 {
		t.Fatalf("expected one recorded turn, got %d", len(state.ConversationHistory))
	}
	turn := state.ConversationHistory[0]
	if turn.UserMessage != "Alex" || turn.AgentResponse == "" {
		t.Errorf("turn not recorded correctly: %+v", turn)
	}
}
