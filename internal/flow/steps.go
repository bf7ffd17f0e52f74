// Package flow implements the deterministic onboarding flow engine: the step
// registry, the transition function, per-step validators, the response
// processor, and the per-turn event-streaming agent.
package flow

import (
	"fmt"
	"log/slog"

	"github.com/SproutFi/sprout/internal/genai"
	"github.com/SproutFi/sprout/internal/models"
)

// MessageSpec is a step message that is either a static string or computed
// from the session state.
type MessageSpec struct {
	static  string
	compute func(*models.ProfileState) string
}

// StaticMessage builds a MessageSpec from a literal.
func StaticMessage(text string) MessageSpec {
	return MessageSpec{static: text}
}

// ComputedMessage builds a MessageSpec from a state-dependent function.
func ComputedMessage(fn func(*models.ProfileState) string) MessageSpec {
	return MessageSpec{compute: fn}
}

// Resolve returns the message for the given state.
func (m MessageSpec) Resolve(state *models.ProfileState) string {
	if m.compute != nil {
		return m.compute(state)
	}
	return m.static
}

// NextSpec is a step's successor rule: a static step, a function of
// (response, state), or unset for terminal steps.
type NextSpec struct {
	static  models.FlowStep
	compute func(response string, state *models.ProfileState) models.FlowStep
	set     bool
}

// StaticNext builds a NextSpec from a fixed successor step.
func StaticNext(step models.FlowStep) NextSpec {
	return NextSpec{static: step, set: true}
}

// ComputedNext builds a NextSpec from a transition function.
func ComputedNext(fn func(response string, state *models.ProfileState) models.FlowStep) NextSpec {
	return NextSpec{compute: fn, set: true}
}

// Resolve returns the successor step for the given response and state.
// The second return value is false for terminal steps with no successor.
func (n NextSpec) Resolve(response string, state *models.ProfileState) (models.FlowStep, bool) {
	if !n.set {
		return "", false
	}
	if n.compute != nil {
		return n.compute(response, state), true
	}
	return n.static, true
}

// ValidatorFunc validates a user response for a step. On success it may have
// mutated the state's user context as a side effect; on failure it returns a
// user-facing re-prompt message.
type ValidatorFunc func(response string, state *models.ProfileState) (bool, string)

// StepDefinition is the static configuration bound to one flow step.
type StepDefinition struct {
	ID              models.FlowStep
	Message         MessageSpec
	InteractionType models.InteractionType
	Choices         []models.Choice
	ExpectedField   string
	Validate        ValidatorFunc
	Next            NextSpec
}

// MoneyFeelingChoices is the fixed money-feelings choice set. Declaration
// order is the tie-break order for matching.
var MoneyFeelingChoices = []models.Choice{
	{ID: "anxious", Label: "Anxious 😰", Value: "anxious", Synonyms: []string{"worried", "stressed", "nervous", "scared"}},
	{ID: "confident", Label: "Confident 💪", Value: "confident", Synonyms: []string{"good", "in control", "secure"}},
	{ID: "curious", Label: "Curious 🤔", Value: "curious", Synonyms: []string{"interested", "learning", "intrigued"}},
	{ID: "overwhelmed", Label: "Overwhelmed 🌊", Value: "overwhelmed", Synonyms: []string{"too much", "drowning", "lost"}},
	{ID: "indifferent", Label: "Indifferent 😐", Value: "indifferent", Synonyms: []string{"meh", "neutral", "fine"}},
}

// IncomeRangeChoices is the fixed income-band choice set.
var IncomeRangeChoices = []models.Choice{
	{ID: "under_25k", Label: "Under $25k", Value: "under_25k", Synonyms: []string{"under 25", "less than 25k", "lowest"}},
	{ID: "25k_50k", Label: "$25k – $50k", Value: "25k_50k", Synonyms: []string{"25 to 50", "about 40k"}},
	{ID: "50k_100k", Label: "$50k – $100k", Value: "50k_100k", Synonyms: []string{"50 to 100", "about 75k"}},
	{ID: "over_100k", Label: "Over $100k", Value: "over_100k", Synonyms: []string{"more than 100k", "six figures", "highest"}},
}

// pathChoices is presented at the questionnaire-vs-open-chat fork.
var pathChoices = []models.Choice{
	{ID: "guided", Label: "Ask me a few questions", Value: "guided", Synonyms: []string{"questions", "guided", "full"}},
	{ID: "open_chat", Label: "Skip to open chat", Value: "open_chat", Synonyms: []string{"open", "chat", "skip", "no"}},
}

// incomeDecisionChoices is presented at the income disclosure fork.
var incomeDecisionChoices = []models.Choice{
	{ID: "income_exact", Label: "Share an exact amount", Value: "income_exact", Synonyms: []string{"exact", "sure", "yes"}},
	{ID: "income_range", Label: "Pick a range", Value: "income_range", Synonyms: []string{"range", "band", "rather not"}},
}

// connectChoices is presented at the account-connection step.
var connectChoices = []models.Choice{
	{ID: "connect_now", Label: "Connect now", Value: "connect_now", Synonyms: []string{"now", "sure", "yes"}},
	{ID: "connect_later", Label: "Maybe later", Value: "connect_later", Synonyms: []string{"later", "not now", "no"}},
}

// Registry is the immutable, process-wide collection of step definitions.
// It is built once at startup and injected into the processor and agent,
// and is safe for unsynchronized concurrent reads.
type Registry struct {
	steps map[models.FlowStep]StepDefinition
}

// NewRegistry builds the flow definitions, binding validators to the given
// extraction client. A nil extractor is allowed: validators then run on
// deterministic heuristics only.
func NewRegistry(extractor genai.ClientInterface) *Registry {
	return NewRegistryWithValidators(NewValidators(extractor))
}

// NewRegistryWithValidators builds the flow definitions around an explicit
// validator set. Tests use this to control the validators' clock.
func NewRegistryWithValidators(v *Validators) *Registry {
	firstName := func(state *models.ProfileState) string {
		if name := state.UserContext.PreferredName; name != "" {
			return name
		}
		return "there"
	}

	steps := map[models.FlowStep]StepDefinition{
		models.StepPresentation: {
			ID:              models.StepPresentation,
			Message:         StaticMessage("Hi! I'm Sprout, your personal finance sidekick. 🌱 Before we dive in, what should I call you?"),
			InteractionType: models.InteractionFreeText,
			ExpectedField:   "preferred_name",
			Validate:        v.ValidateName,
			Next:            ComputedNext(DetermineNextStep),
		},
		models.Step1Choice: {
			ID: models.Step1Choice,
			Message: ComputedMessage(func(state *models.ProfileState) string {
				return fmt.Sprintf("Nice to meet you, %s! I can ask a few quick questions to tailor things for you, or you can skip straight to open chat. What sounds better?", firstName(state))
			}),
			InteractionType: models.InteractionSingleChoice,
			Choices:         pathChoices,
			Next:            ComputedNext(DetermineNextStep),
		},
		models.StepDobQuick: {
			ID:              models.StepDobQuick,
			Message:         StaticMessage("One quick thing before we start chatting: what's your date of birth? YYYY-MM-DD works best."),
			InteractionType: models.InteractionFreeText,
			ExpectedField:   "date_of_birth",
			Validate:        v.ValidateDateOfBirth,
			Next:            ComputedNext(DetermineNextStep),
		},
		models.Step2Dob: {
			ID:              models.Step2Dob,
			Message:         StaticMessage("First up: what's your date of birth? YYYY-MM-DD works best."),
			InteractionType: models.InteractionFreeText,
			ExpectedField:   "date_of_birth",
			Validate:        v.ValidateDateOfBirth,
			Next:            ComputedNext(DetermineNextStep),
		},
		models.Step3Location: {
			ID:              models.Step3Location,
			Message:         StaticMessage("Where do you call home? City and region is perfect, like \"Austin, Texas\"."),
			InteractionType: models.InteractionFreeText,
			ExpectedField:   "city",
			Validate:        v.ValidateLocation,
			Next:            StaticNext(models.Step4Housing),
		},
		models.Step4Housing: {
			ID:              models.Step4Housing,
			Message:         StaticMessage("Roughly what do you pay each month for rent or your mortgage? A ballpark is fine."),
			InteractionType: models.InteractionFreeText,
			ExpectedField:   "rent_mortgage",
			Validate:        v.ValidateHousingCost,
			Next:            StaticNext(models.Step4MoneyFeelings),
		},
		models.Step4MoneyFeelings: {
			ID:              models.Step4MoneyFeelings,
			Message:         StaticMessage("When you think about money, what feeling comes up most?"),
			InteractionType: models.InteractionSingleChoice,
			Choices:         MoneyFeelingChoices,
			ExpectedField:   "money_feelings",
			Next:            ComputedNext(DetermineNextStep),
		},
		models.Step5IncomeDecision: {
			ID:              models.Step5IncomeDecision,
			Message:         StaticMessage("Would you like to share an exact income, or just pick a range? Either works."),
			InteractionType: models.InteractionSingleChoice,
			Choices:         incomeDecisionChoices,
			Next:            ComputedNext(DetermineNextStep),
		},
		models.Step5aIncomeExact: {
			ID:              models.Step5aIncomeExact,
			Message:         StaticMessage("Great — what's your annual income, before tax?"),
			InteractionType: models.InteractionFreeText,
			ExpectedField:   "income",
			Next:            ComputedNext(DetermineNextStep),
		},
		models.Step5bIncomeRange: {
			ID:              models.Step5bIncomeRange,
			Message:         StaticMessage("No problem — which range fits best?"),
			InteractionType: models.InteractionSingleChoice,
			Choices:         IncomeRangeChoices,
			ExpectedField:   "income_band",
			Next:            ComputedNext(DetermineNextStep),
		},
		models.Step6ConnectAccounts: {
			ID:              models.Step6ConnectAccounts,
			Message:         StaticMessage("Last one! Want to connect your accounts now so I can tailor a budget to real numbers, or set that up later?"),
			InteractionType: models.InteractionSingleChoice,
			Choices:         connectChoices,
			Next:            ComputedNext(DetermineNextStep),
		},
		models.StepSubscriptionNotice: {
			ID: models.StepSubscriptionNotice,
			Message: ComputedMessage(func(state *models.ProfileState) string {
				return fmt.Sprintf("Open chat is part of Sprout Plus, %s. I've unlocked a trial for you — chat freely and I'll keep learning as we go.", firstName(state))
			}),
			InteractionType: models.InteractionFreeText,
			Next:            StaticNext(models.StepComplete),
		},
		models.StepComplete: {
			ID: models.StepComplete,
			Message: ComputedMessage(func(state *models.ProfileState) string {
				return fmt.Sprintf("That's everything I need, %s! I'm putting your plan together now — you'll hear from me shortly.", firstName(state))
			}),
			InteractionType: models.InteractionFreeText,
		},
		models.StepTerminatedUnder18: {
			ID:              models.StepTerminatedUnder18,
			Message:         StaticMessage("Thanks for your interest in Sprout! Right now I can only work with people 18 and older. Take care!"),
			InteractionType: models.InteractionFreeText,
		},
	}

	return &Registry{steps: steps}
}

// Definition returns the definition for a step. Unknown steps fall back to
// the presentation definition rather than failing; the lookup is total.
func (r *Registry) Definition(step models.FlowStep) StepDefinition {
	if def, ok := r.steps[step]; ok {
		return def
	}
	slog.Warn("flow.Registry.Definition: unknown step, falling back to presentation", "step", step)
	return r.steps[models.StepPresentation]
}

// Has reports whether the registry carries a definition for the step.
func (r *Registry) Has(step models.FlowStep) bool {
	_, ok := r.steps[step]
	return ok
}
