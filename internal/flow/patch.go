// Package flow provides the context patch service.
//
// Patches arrive as flat field-name mappings, produced either by the
// deterministic flow or by an LLM-reasoning step, and are normalized to
// dotted paths into the nested profile aggregate before application.
package flow

import (
	"encoding/json"
	"log/slog"

	"github.com/SproutFi/sprout/internal/models"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Patch step names used to select a field-path mapping table.
const (
	PatchStepIdentity  = "identity"
	PatchStepLocation  = "location"
	PatchStepHousehold = "household"
	PatchStepStyle     = "style"
	PatchStepBudget    = "budget"
)

// patchFieldPaths maps flat field names to dotted profile paths, per patch
// step. Keys not found here fall back to the canonical paths below.
var patchFieldPaths = map[string]map[string]string{
	PatchStepIdentity: {
		"preferred_name": "identity.preferred_name",
		"age":            "identity.age",
		"city":           "location.city",
		"region":         "location.region",
	},
	PatchStepLocation: {
		"city":     "location.city",
		"region":   "location.region",
		"language": "locale_info.language",
		"currency": "locale_info.currency",
	},
	PatchStepHousehold: {
		"dependents":    "household.dependents",
		"rent_mortgage": "household.rent_mortgage",
	},
	PatchStepStyle: {
		"tone_preference": "style.tone_preference",
		"needs":           "accessibility.needs",
	},
	PatchStepBudget: {
		"income":         "budget_posture.income",
		"income_band":    "budget_posture.income_band",
		"money_feelings": "budget_posture.money_feelings",
	},
}

// canonicalPaths routes dotless legacy field names to their nested home so a
// patched value survives the nested-to-flat sync that runs afterwards.
var canonicalPaths = map[string]string{
	"preferred_name":  "identity.preferred_name",
	"age":             "identity.age",
	"city":            "location.city",
	"region":          "location.region",
	"language":        "locale_info.language",
	"currency":        "locale_info.currency",
	"dependents":      "household.dependents",
	"rent_mortgage":   "household.rent_mortgage",
	"tone_preference": "style.tone_preference",
	"needs":           "accessibility.needs",
	"income":          "budget_posture.income",
	"income_band":     "budget_posture.income_band",
	"money_feelings":  "budget_posture.money_feelings",
}

// listFields are profile paths whose values are lists; scalar patch values
// for these paths are coerced into single-element lists. The JSON document
// cannot always reveal this (empty lists are omitted), so the known list
// paths are named here.
var listFields = map[string]bool{
	"budget_posture.money_feelings": true,
	"accessibility.needs":           true,
}

// ContextPatchService applies flat field patches onto the nested profile.
type ContextPatchService struct{}

// NewContextPatchService creates a patch service.
func NewContextPatchService() *ContextPatchService {
	return &ContextPatchService{}
}

// ApplyPatch maps each patch key to its dotted path and applies it to the
// profile aggregate, coercing scalars to single-element lists where the
// target is a list and routing the legacy "opt_in" key to the consent flag.
// Application is best-effort: a failing key is logged and skipped, and the
// nested-to-flat sync runs after all keys are applied.
func (s *ContextPatchService) ApplyPatch(state *models.ProfileState, step string, patch map[string]any) {
	if state == nil || state.UserContext == nil || len(patch) == 0 {
		return
	}

	doc, err := json.Marshal(state.UserContext)
	if err != nil {
		slog.Error("ContextPatchService.ApplyPatch: failed to marshal profile", "error", err, "userID", state.UserID)
		return
	}

	mapping := patchFieldPaths[step]
	for key, value := range patch {
		path := key
		if mapped, ok := mapping[key]; ok {
			path = mapped
		} else if mapped, ok := canonicalPaths[key]; ok {
			path = mapped
		}

		// Legacy consent key from older clients.
		if path == "opt_in" {
			if granted, ok := value.(bool); ok {
				path, value = "safety.consent_granted", granted
			} else {
				slog.Warn("ContextPatchService.ApplyPatch: non-boolean opt_in, skipping", "userID", state.UserID)
				continue
			}
		}

		if listFields[path] || gjson.GetBytes(doc, path).IsArray() {
			if _, isList := value.([]any); !isList {
				value = []any{value}
			}
		}

		updated, err := sjson.SetBytes(doc, path, value)
		if err != nil {
			slog.Warn("ContextPatchService.ApplyPatch: failed to set field, skipping", "error", err, "key", key, "path", path, "userID", state.UserID)
			continue
		}
		// Verify the document still deserializes before committing the key;
		// one malformed field must not corrupt the rest of the profile.
		var probe models.UserProfile
		if err := json.Unmarshal(updated, &probe); err != nil {
			slog.Warn("ContextPatchService.ApplyPatch: field broke profile shape, skipping", "error", err, "key", key, "path", path, "userID", state.UserID)
			continue
		}
		doc = updated
	}

	var result models.UserProfile
	if err := json.Unmarshal(doc, &result); err != nil {
		slog.Error("ContextPatchService.ApplyPatch: failed to unmarshal patched profile", "error", err, "userID", state.UserID)
		return
	}
	*state.UserContext = result
	state.UserContext.SyncNestedToFlat()
	slog.Debug("ContextPatchService.ApplyPatch: patch applied", "step", step, "fields", len(patch), "userID", state.UserID)
}
