package models

import "testing"

func TestChoiceMatches(t *testing.T) {
	choice := Choice{
		ID:       "anxious",
		Label:    "Anxious 😰",
		Value:    "anxious",
		Synonyms: []string{"worried", "stressed"},
	}

	cases := []struct {
		input string
		want  bool
	}{
		{"anxious", true},
		{"ANXIOUS", true},
		{"  worried  ", true},
		{"Stressed", true},
		{"Anxious 😰", false}, // labels are presentation only
		{"calm", false},
		{"", false},
		{"   ", false},
	}
	for _, tc := range cases {
		if got := choice.Matches(tc.input); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestMatchChoiceDeclarationOrder(t *testing.T) {
	choices := []Choice{
		{ID: "first", Value: "first", Synonyms: []string{"shared"}},
		{ID: "second", Value: "second", Synonyms: []string{"shared"}},
	}

	got, ok := MatchChoice(choices, "shared")
	if !ok {
		t.Fatal("expected a match for shared synonym")
	}
	if got.ID != "first" {
		t.Errorf("expected declaration-order tie-break to pick %q, got %q", "first", got.ID)
	}
}

func TestMatchChoiceNoMatch(t *testing.T) {
	choices := []Choice{{ID: "a", Value: "a"}}
	if _, ok := MatchChoice(choices, "b"); ok {
		t.Error("expected no match for unknown input")
	}
	if _, ok := MatchChoice(nil, "a"); ok {
		t.Error("expected no match against empty choice set")
	}
}
