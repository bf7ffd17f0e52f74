// Package flow provides per-field validators for the onboarding steps.
//
// Every validator that consults the extraction capability wraps the call so
// extraction failure degrades to a deterministic heuristic; the flow must
// always be able to make forward progress from user input.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/SproutFi/sprout/internal/genai"
	"github.com/SproutFi/sprout/internal/models"
)

// dobFormats are the accepted date-of-birth layouts, tried in order.
var dobFormats = []string{"2006-01-02", "01/02/2006", "02/01/2006"}

// Validators holds the per-field validation functions. The extraction client
// may be nil, in which case only the deterministic heuristics run. The clock
// is injectable so age computation is testable.
type Validators struct {
	extractor genai.ClientInterface
	now       func() time.Time
}

// NewValidators creates a validator set bound to an extraction client.
func NewValidators(extractor genai.ClientInterface) *Validators {
	return &Validators{extractor: extractor, now: time.Now}
}

// NewValidatorsWithClock creates a validator set with a fixed clock for tests.
func NewValidatorsWithClock(extractor genai.ClientInterface, now func() time.Time) *Validators {
	return &Validators{extractor: extractor, now: now}
}

// ValidateName validates and stores the user's preferred name. Extraction is
// attempted first; a single alphabetic token is the deterministic fallback.
func (v *Validators) ValidateName(response string, state *models.ProfileState) (bool, string) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return false, "I didn't catch that — what should I call you?"
	}

	if v.extractor != nil {
		schema := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"preferred_name": map[string]any{"type": "string"},
			},
		}
		result, err := v.extractor.ExtractStructured(context.Background(), schema, response,
			"Extract the name the user wants to be called by.")
		if err != nil {
			slog.Warn("flow.ValidateName: extraction failed, using fallback", "error", err, "userID", state.UserID)
		} else if name, ok := result["preferred_name"].(string); ok && strings.TrimSpace(name) != "" {
			setPreferredName(state, strings.TrimSpace(name))
			return true, ""
		}
	}

	if isAlphabeticToken(trimmed) {
		setPreferredName(state, trimmed)
		return true, ""
	}
	return false, "Just a first name is fine — what should I call you?"
}

// ValidateDateOfBirth parses the response against the accepted formats,
// computes the user's age in whole years as of today, and stores it. The
// age-gate decision itself belongs to the transition function, so any
// successfully parsed date validates regardless of the resulting age.
func (v *Validators) ValidateDateOfBirth(response string, state *models.ProfileState) (bool, string) {
	trimmed := strings.TrimSpace(response)

	var birth time.Time
	parsed := false
	for _, layout := range dobFormats {
		if t, err := time.Parse(layout, trimmed); err == nil {
			birth = t
			parsed = true
			break
		}
	}
	if !parsed {
		return false, "I couldn't read that date. Please use YYYY-MM-DD or MM/DD/YYYY."
	}

	today := v.now()
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	if age < 0 || age > 130 {
		slog.Warn("flow.ValidateDateOfBirth: implausible age", "age", age, "userID", state.UserID)
	}

	state.UserContext.Age = age
	state.UserContext.Identity.DateOfBirth = birth.Format("2006-01-02")
	state.UserContext.SyncFlatToNested()
	slog.Debug("flow.ValidateDateOfBirth: stored age", "age", age, "userID", state.UserID)
	return true, ""
}

// ValidateLocation stores a best-effort city/region split. A delimiter split
// is tried first, then extraction, then the whole response as the city.
func (v *Validators) ValidateLocation(response string, state *models.ProfileState) (bool, string) {
	trimmed := strings.TrimSpace(response)
	if len(trimmed) < 3 {
		return false, "Could you tell me a little more about where you live?"
	}

	if idx := strings.IndexAny(trimmed, ",;"); idx >= 0 {
		state.UserContext.City = strings.TrimSpace(trimmed[:idx])
		state.UserContext.Region = strings.TrimSpace(trimmed[idx+1:])
		state.UserContext.SyncFlatToNested()
		return true, ""
	}

	if v.extractor != nil {
		schema := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city":   map[string]any{"type": "string"},
				"region": map[string]any{"type": "string"},
			},
		}
		result, err := v.extractor.ExtractStructured(context.Background(), schema, response,
			"Extract the city and region (state, province, or country) the user lives in.")
		if err != nil {
			slog.Warn("flow.ValidateLocation: extraction failed, using fallback", "error", err, "userID", state.UserID)
		} else if city, ok := result["city"].(string); ok && strings.TrimSpace(city) != "" {
			state.UserContext.City = strings.TrimSpace(city)
			if region, ok := result["region"].(string); ok {
				state.UserContext.Region = strings.TrimSpace(region)
			}
			state.UserContext.SyncFlatToNested()
			return true, ""
		}
	}

	state.UserContext.City = trimmed
	state.UserContext.SyncFlatToNested()
	return true, ""
}

// ValidateHousingCost stores the raw trimmed response; no numeric parsing.
func (v *Validators) ValidateHousingCost(response string, state *models.ProfileState) (bool, string) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return false, "Even a rough number helps — what do you pay monthly for housing?"
	}
	state.UserContext.RentMortgage = trimmed
	state.UserContext.SyncFlatToNested()
	return true, ""
}

func setPreferredName(state *models.ProfileState, name string) {
	state.UserContext.PreferredName = name
	state.UserContext.SyncFlatToNested()
	slog.Debug("flow.setPreferredName: stored name", "userID", state.UserID)
}

// isAlphabeticToken reports whether s is a single word of letters only.
func isAlphabeticToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '-' && r != '\'' {
			return false
		}
	}
	return true
}
