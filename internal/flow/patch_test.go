package flow

import (
	"reflect"
	"testing"
)

func TestApplyPatchMapsFlatKeysToNestedPaths(t *testing.T) {
	svc := NewContextPatchService()
	state := newTestState(t)

	svc.ApplyPatch(state, PatchStepIdentity, map[string]any{
		"preferred_name": "Alex",
		"age":            34,
		"city":           "Austin",
	})

	p := state.UserContext
	if p.Identity.PreferredName != "Alex" || p.Identity.Age != 34 {
		t.Errorf("identity patch not applied: %+v", p.Identity)
	}
	if p.Location.City != "Austin" {
		t.Errorf("location patch not applied: %+v", p.Location)
	}
	// The flat view follows the nested view after the patch.
	if p.PreferredName != "Alex" || p.Age != 34 || p.City != "Austin" {
		t.Errorf("flat view not synced after patch: %+v", p)
	}
}

func TestApplyPatchDottedPaths(t *testing.T) {
	svc := NewContextPatchService()
	state := newTestState(t)

	svc.ApplyPatch(state, PatchStepBudget, map[string]any{
		"budget_posture.income_band": "50k_100k",
		"locale_info.currency":       "USD",
	})

	if state.UserContext.BudgetPosture.IncomeBand != "50k_100k" {
		t.Errorf("dotted budget patch not applied: %+v", state.UserContext.BudgetPosture)
	}
	if state.UserContext.LocaleInfo.Currency != "USD" {
		t.Errorf("dotted locale patch not applied: %+v", state.UserContext.LocaleInfo)
	}
}

func TestApplyPatchCoercesScalarToList(t *testing.T) {
	svc := NewContextPatchService()
	state := newTestState(t)

	svc.ApplyPatch(state, PatchStepBudget, map[string]any{"money_feelings": "anxious"})
	if !reflect.DeepEqual(state.UserContext.BudgetPosture.MoneyFeelings, []string{"anxious"}) {
		t.Errorf("scalar not coerced to list: %v", state.UserContext.BudgetPosture.MoneyFeelings)
	}

	svc.ApplyPatch(state, PatchStepBudget, map[string]any{"money_feelings": []any{"curious", "confident"}})
	if !reflect.DeepEqual(state.UserContext.BudgetPosture.MoneyFeelings, []string{"curious", "confident"}) {
		t.Errorf("list value not applied: %v", state.UserContext.BudgetPosture.MoneyFeelings)
	}
}

func TestApplyPatchLegacyOptIn(t *testing.T) {
	svc := NewContextPatchService()
	state := newTestState(t)

	svc.ApplyPatch(state, PatchStepIdentity, map[string]any{"opt_in": true})
	if !state.UserContext.Safety.ConsentGranted {
		t.Error("expected opt_in routed to consent flag")
	}

	// Non-boolean opt_in is skipped without touching the flag.
	state.UserContext.Safety.ConsentGranted = false
	svc.ApplyPatch(state, PatchStepIdentity, map[string]any{"opt_in": "yes"})
	if state.UserContext.Safety.ConsentGranted {
		t.Error("non-boolean opt_in must be ignored")
	}
}

func TestApplyPatchBadKeyDoesNotCorruptProfile(t *testing.T) {
	svc := NewContextPatchService()
	state := newTestState(t)
	state.UserContext.PreferredName = "Alex"
	state.UserContext.SyncFlatToNested()

	// A type-incompatible value for a typed field is skipped; the rest of the
	// patch still lands.
	svc.ApplyPatch(state, PatchStepIdentity, map[string]any{
		"age":  "not a number",
		"city": "Denver",
	})

	if state.UserContext.Identity.Age != 0 {
		t.Errorf("malformed age should be skipped, got %d", state.UserContext.Identity.Age)
	}
	if state.UserContext.City != "Denver" {
		t.Errorf("well-formed key should still apply, got %q", state.UserContext.City)
	}
	if state.UserContext.PreferredName != "Alex" {
		t.Errorf("existing fields must survive a partial patch, got %q", state.UserContext.PreferredName)
	}
}

func TestApplyPatchEmptyAndNil(t *testing.T) {
	svc := NewContextPatchService()
	state := newTestState(t)

	svc.ApplyPatch(state, PatchStepIdentity, nil)
	svc.ApplyPatch(nil, PatchStepIdentity, map[string]any{"city": "x"})
	// Reaching here without panicking is the assertion.
}
