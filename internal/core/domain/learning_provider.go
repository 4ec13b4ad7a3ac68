package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Verification authorities carried on UKRLP provider records.
const (
	AuthorityDfENumber         = "DfE (Schools Unique Reference Number)"
	AuthorityCompaniesHouse    = "Companies House"
	AuthorityCharityCommission = "Charity Commission"
)

// LearningProvider is the outward-facing shape of a provider after field
// mapping. Enum-coded fields hold translated values where a mapping exists
// and the raw UKRLP value where it does not.
type LearningProvider struct {
	UKPRN                   int64      `json:"ukprn"`
	Name                    string     `json:"name"`
	LegalName               string     `json:"legal_name,omitempty"`
	Status                  string     `json:"status,omitempty"`
	VerificationDate        *time.Time `json:"verification_date,omitempty"`
	ExpiryDate              *time.Time `json:"expiry_date,omitempty"`
	Postcode                string     `json:"postcode,omitempty"`
	AddressLine1            string     `json:"address_line1,omitempty"`
	AddressLine2            string     `json:"address_line2,omitempty"`
	AddressLine3            string     `json:"address_line3,omitempty"`
	AddressLine4            string     `json:"address_line4,omitempty"`
	Town                    string     `json:"town,omitempty"`
	County                  string     `json:"county,omitempty"`
	Telephone               string     `json:"telephone,omitempty"`
	Website                 string     `json:"website,omitempty"`
	Email                   string     `json:"email,omitempty"`
	URN                     string     `json:"urn,omitempty"`
	CompaniesHouseNumber    string     `json:"companies_house_number,omitempty"`
	CharityCommissionNumber string     `json:"charity_commission_number,omitempty"`
}

// PruneFields projects the provider down to the requested fields, matched
// against its JSON field names case-insensitively. Unknown names are
// ignored. An empty request returns the provider untouched.
func (lp *LearningProvider) PruneFields(fields []string) (map[string]any, error) {
	raw, err := json.Marshal(lp)
	if err != nil {
		return nil, err
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return full, nil
	}

	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[strings.ToLower(strings.TrimSpace(f))] = true
	}
	pruned := make(map[string]any)
	for k, v := range full {
		if wanted[strings.ToLower(k)] {
			pruned[k] = v
		}
	}
	return pruned, nil
}
