// Package models defines the user profile aggregate built during onboarding.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Identity holds who the user is.
type Identity struct {
	PreferredName string `json:"preferred_name,omitempty"`
	Age           int    `json:"age,omitempty"`
	DateOfBirth   string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
}

// Safety holds consent and escalation settings.
type Safety struct {
	ConsentGranted    bool   `json:"consent_granted"`
	EscalationContact string `json:"escalation_contact,omitempty"`
}

// Style holds communication preferences.
type Style struct {
	TonePreference string `json:"tone_preference,omitempty"`
}

// Location holds where the user lives.
type Location struct {
	City   string `json:"city,omitempty"`
	Region string `json:"region,omitempty"`
}

// LocaleInfo holds language and currency settings.
type LocaleInfo struct {
	Language string `json:"language,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// Household holds household composition and fixed costs.
type Household struct {
	Dependents   int    `json:"dependents,omitempty"`
	RentMortgage string `json:"rent_mortgage,omitempty"`
}

// Accessibility holds accessibility needs.
type Accessibility struct {
	Needs []string `json:"needs,omitempty"`
}

// BudgetPosture holds the user's financial situation and attitude.
type BudgetPosture struct {
	Income        string   `json:"income,omitempty"`
	IncomeBand    string   `json:"income_band,omitempty"`
	MoneyFeelings []string `json:"money_feelings,omitempty"`
}

// UserProfile is the collected-facts aggregate for one user. It carries two
// views of the same data: flat legacy fields written by the flow validators,
// and a nested structured view written by dotted-path context patches. The
// two views are kept consistent by explicit sync calls; callers must invoke
// SyncFlatToNested or SyncNestedToFlat after mutating either view. The flat
// shape is required verbatim by the downstream handoff contract, which is why
// it is stored rather than computed.
type UserProfile struct {
	UserID string `json:"user_id"`

	// Flat legacy fields.
	PreferredName  string   `json:"preferred_name,omitempty"`
	Age            int      `json:"age,omitempty"`
	City           string   `json:"city,omitempty"`
	Region         string   `json:"region,omitempty"`
	Income         string   `json:"income,omitempty"`
	IncomeBand     string   `json:"income_band,omitempty"`
	RentMortgage   string   `json:"rent_mortgage,omitempty"`
	MoneyFeelings  []string `json:"money_feelings,omitempty"`
	TonePreference string   `json:"tone_preference,omitempty"`
	Dependents     int      `json:"dependents,omitempty"`
	Language       string   `json:"language,omitempty"`

	// Nested structured view.
	Identity      Identity      `json:"identity"`
	Safety        Safety        `json:"safety"`
	Style         Style         `json:"style"`
	Location      Location      `json:"location"`
	LocaleInfo    LocaleInfo    `json:"locale_info"`
	Household     Household     `json:"household"`
	Accessibility Accessibility `json:"accessibility"`
	BudgetPosture BudgetPosture `json:"budget_posture"`

	// ReadyForOrchestrator signals the downstream system may take over.
	ReadyForOrchestrator bool `json:"ready_for_orchestrator"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserProfile creates an empty profile for the given user.
func NewUserProfile(userID string) *UserProfile {
	now := time.Now()
	return &UserProfile{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SyncFlatToNested copies the flat legacy fields into the nested view.
func (p *UserProfile) SyncFlatToNested() {
	p.Identity.PreferredName = p.PreferredName
	p.Identity.Age = p.Age
	p.Location.City = p.City
	p.Location.Region = p.Region
	p.LocaleInfo.Language = p.Language
	p.Household.Dependents = p.Dependents
	p.Household.RentMortgage = p.RentMortgage
	p.Style.TonePreference = p.TonePreference
	p.BudgetPosture.Income = p.Income
	p.BudgetPosture.IncomeBand = p.IncomeBand
	p.BudgetPosture.MoneyFeelings = p.MoneyFeelings
	p.UpdatedAt = time.Now()
}

// SyncNestedToFlat copies the nested view back onto the flat legacy fields.
func (p *UserProfile) SyncNestedToFlat() {
	p.PreferredName = p.Identity.PreferredName
	p.Age = p.Identity.Age
	p.City = p.Location.City
	p.Region = p.Location.Region
	p.Language = p.LocaleInfo.Language
	p.Dependents = p.Household.Dependents
	p.RentMortgage = p.Household.RentMortgage
	p.TonePreference = p.Style.TonePreference
	p.Income = p.BudgetPosture.Income
	p.IncomeBand = p.BudgetPosture.IncomeBand
	p.MoneyFeelings = p.BudgetPosture.MoneyFeelings
	p.UpdatedAt = time.Now()
}

// ToJSON serializes the profile for storage.
func (p *UserProfile) ToJSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user profile: %w", err)
	}
	return string(data), nil
}

// FromJSON deserializes a stored profile into p.
func (p *UserProfile) FromJSON(data string) error {
	if err := json.Unmarshal([]byte(data), p); err != nil {
		return fmt.Errorf("failed to unmarshal user profile: %w", err)
	}
	return nil
}
