// Package flow implements the step transition function.
package flow

import (
	"log/slog"
	"strings"

	"github.com/SproutFi/sprout/internal/models"
)

// openChatTokens route step 1 responses to the abbreviated path when any of
// them appears as a substring of the response.
var openChatTokens = []string{"open", "chat", "skip", "no"}

// DetermineNextStep maps (response, state) to the next flow step. It is
// total over the FlowStep domain: unrecognized steps fall back to
// StepComplete. Choice matching never fails the transition; an unmatched
// response simply leaves the corresponding value unset.
func DetermineNextStep(response string, state *models.ProfileState) models.FlowStep {
	switch state.CurrentFlowStep {
	case models.StepPresentation:
		name := strings.TrimSpace(state.UserContext.PreferredName)
		if name == "" {
			if trimmed := strings.TrimSpace(response); trimmed != "" {
				state.UserContext.PreferredName = trimmed
				state.UserContext.SyncFlatToNested()
				name = trimmed
			}
		}
		if name == "" {
			return models.StepPresentation
		}
		return models.Step1Choice

	case models.Step1Choice:
		lower := strings.ToLower(response)
		for _, token := range openChatTokens {
			if strings.Contains(lower, token) {
				return models.StepDobQuick
			}
		}
		return models.Step2Dob

	case models.StepDobQuick, models.Step2Dob:
		// The gate fires only once a date of birth was actually captured;
		// a skipped quick-path step has no age to judge.
		if state.UserContext.Identity.DateOfBirth != "" && state.UserContext.Age < 18 {
			return models.StepTerminatedUnder18
		}
		if historyMentions(state, "open") {
			return models.StepSubscriptionNotice
		}
		if state.CurrentFlowStep == models.StepDobQuick {
			state.MarkReadyForCompletion()
			return models.StepComplete
		}
		return models.Step3Location

	case models.Step3Location:
		return models.Step4Housing

	case models.Step4Housing:
		return models.Step4MoneyFeelings

	case models.Step4MoneyFeelings:
		if choice, ok := models.MatchChoice(MoneyFeelingChoices, response); ok {
			appendMoneyFeeling(state, choice.Value)
		}
		return models.Step5IncomeDecision

	case models.Step5IncomeDecision:
		lower := strings.ToLower(strings.TrimSpace(response))
		if strings.Contains(lower, "exact") || lower == "sure" || lower == "yes" || lower == "income_exact" {
			return models.Step5aIncomeExact
		}
		return models.Step5bIncomeRange

	case models.Step5aIncomeExact:
		if trimmed := strings.TrimSpace(response); trimmed != "" {
			state.UserContext.Income = trimmed
			state.UserContext.SyncFlatToNested()
		}
		return models.Step6ConnectAccounts

	case models.Step5bIncomeRange:
		if choice, ok := models.MatchChoice(IncomeRangeChoices, response); ok {
			state.UserContext.IncomeBand = choice.Value
			state.UserContext.SyncFlatToNested()
		}
		return models.Step6ConnectAccounts

	case models.Step6ConnectAccounts:
		state.MarkReadyForCompletion()
		return models.StepComplete

	default:
		slog.Warn("flow.DetermineNextStep: unexpected step, defaulting to complete",
			"step", state.CurrentFlowStep, "conversationID", state.ConversationID)
		return models.StepComplete
	}
}

// historyMentions reports whether any prior user message contains the given
// substring (case-insensitive).
func historyMentions(state *models.ProfileState, substr string) bool {
	for _, turn := range state.ConversationHistory {
		if strings.Contains(strings.ToLower(turn.UserMessage), substr) {
			return true
		}
	}
	return false
}

// appendMoneyFeeling records a canonical money-feeling value, skipping
// duplicates, and syncs the nested view.
func appendMoneyFeeling(state *models.ProfileState, value string) {
	for _, existing := range state.UserContext.MoneyFeelings {
		if existing == value {
			return
		}
	}
	state.UserContext.MoneyFeelings = append(state.UserContext.MoneyFeelings, value)
	state.UserContext.SyncFlatToNested()
}
