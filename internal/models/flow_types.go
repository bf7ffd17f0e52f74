// Package models defines flow type definitions shared across modules.
package models

// FlowStep represents a named state in the onboarding state machine.
type FlowStep string

// Flow step constants, in flow order. StepComplete and
// StepTerminatedUnder18 are terminal.
const (
	StepPresentation        FlowStep = "presentation"
	Step1Choice             FlowStep = "step_1_choice"
	StepDobQuick            FlowStep = "step_dob_quick"
	Step2Dob                FlowStep = "step_2_dob"
	Step3Location           FlowStep = "step_3_location"
	Step4Housing            FlowStep = "step_4_housing"
	Step4MoneyFeelings      FlowStep = "step_4_money_feelings"
	Step5IncomeDecision     FlowStep = "step_5_income_decision"
	Step5aIncomeExact       FlowStep = "step_5a_income_exact"
	Step5bIncomeRange       FlowStep = "step_5b_income_range"
	Step6ConnectAccounts    FlowStep = "step_6_connect_accounts"
	StepSubscriptionNotice  FlowStep = "subscription_notice"
	StepComplete            FlowStep = "complete"
	StepTerminatedUnder18   FlowStep = "terminated_under_18"
)

// AllFlowSteps lists every flow step in declaration order.
var AllFlowSteps = []FlowStep{
	StepPresentation,
	Step1Choice,
	StepDobQuick,
	Step2Dob,
	Step3Location,
	Step4Housing,
	Step4MoneyFeelings,
	Step5IncomeDecision,
	Step5aIncomeExact,
	Step5bIncomeRange,
	Step6ConnectAccounts,
	StepSubscriptionNotice,
	StepComplete,
	StepTerminatedUnder18,
}

// IsTerminal reports whether the step ends the onboarding conversation.
func (s FlowStep) IsTerminal() bool {
	return s == StepComplete || s == StepTerminatedUnder18
}

// IsValidFlowStep checks if the given flow step is a known state.
func IsValidFlowStep(s FlowStep) bool {
	for _, step := range AllFlowSteps {
		if s == step {
			return true
		}
	}
	return false
}
