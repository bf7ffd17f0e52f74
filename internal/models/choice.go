// Package models defines the core data structures for Sprout.
//
// It includes the onboarding flow state space, interaction value types,
// the user profile aggregate, and event envelopes shared across modules.
package models

import "strings"

// InteractionType governs which UI affordance is rendered for a step and
// whether a choices list accompanies it.
type InteractionType string

const (
	// InteractionFreeText expects an unconstrained text reply.
	InteractionFreeText InteractionType = "free_text"
	// InteractionSingleChoice expects exactly one of the presented choices.
	InteractionSingleChoice InteractionType = "single_choice"
	// InteractionMultiChoice expects one or more of the presented choices.
	InteractionMultiChoice InteractionType = "multi_choice"
)

// Choice is an immutable presentable option. It is used both to render UI
// options and to match free-text responses against id, value, and synonyms.
type Choice struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Value    string   `json:"value"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Matches reports whether input matches this choice's id, value, or any
// synonym. Comparison is case-insensitive on the trimmed input.
func (c Choice) Matches(input string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return false
	}
	if normalized == strings.ToLower(c.ID) || normalized == strings.ToLower(c.Value) {
		return true
	}
	for _, syn := range c.Synonyms {
		if normalized == strings.ToLower(syn) {
			return true
		}
	}
	return false
}

// MatchChoice returns the first choice in declaration order that matches
// input. The second return value is false when nothing matched.
func MatchChoice(choices []Choice, input string) (Choice, bool) {
	for _, c := range choices {
		if c.Matches(input) {
			return c, true
		}
	}
	return Choice{}, false
}
