package domain

import "time"

// Contact type codes as they appear on UKRLP provider records.
const (
	ContactTypeLegal   = "L"
	ContactTypePrimary = "P"
)

// Provider is one UKRLP registry record as returned by the upstream API.
type Provider struct {
	// UKPRN is the UK Provider Reference Number, the stable identity of a
	// provider across time.
	UKPRN int64 `json:"ukprn"`

	ProviderName             string     `json:"provider_name"`
	AccessibleProviderName   string     `json:"accessible_provider_name,omitempty"`
	ProviderStatus           string     `json:"provider_status,omitempty"`
	ProviderVerificationDate *time.Time `json:"provider_verification_date,omitempty"`
	ExpiryDate               *time.Time `json:"expiry_date,omitempty"`

	Contacts      []ProviderContact    `json:"contacts,omitempty"`
	Verifications []VerificationDetail `json:"verifications,omitempty"`
}

// VerificationDetail cross-references the provider in another identifier
// scheme (DfE number, Companies House number, charity number, ...).
type VerificationDetail struct {
	Authority string `json:"authority"`
	ID        string `json:"id"`
}

// ProviderContact is one contact record on a provider, tagged with a
// contact-type code ("L" legal, "P" primary).
type ProviderContact struct {
	ContactType     string      `json:"contact_type"`
	ContactRole     string      `json:"contact_role,omitempty"`
	Telephone1      string      `json:"telephone1,omitempty"`
	Telephone2      string      `json:"telephone2,omitempty"`
	Fax             string      `json:"fax,omitempty"`
	WebsiteAddress  string      `json:"website_address,omitempty"`
	Email           string      `json:"email,omitempty"`
	Address         *Address    `json:"address,omitempty"`
	PersonalDetails *PersonName `json:"personal_details,omitempty"`
	LastUpdated     *time.Time  `json:"last_updated,omitempty"`
}

// Address is the UKRLP address block carried on a contact.
type Address struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	Line3    string `json:"line3,omitempty"`
	Line4    string `json:"line4,omitempty"`
	Town     string `json:"town,omitempty"`
	County   string `json:"county,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// PersonName is the UKRLP person-name block carried on a contact.
type PersonName struct {
	Title         string `json:"title,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Suffix        string `json:"suffix,omitempty"`
	RequestedName string `json:"requested_name,omitempty"`
}

// ContactOfType returns the first contact with the given type code, or nil.
// Duplicate contacts of one type are not modeled; selection is first-wins in
// slice order.
func (p *Provider) ContactOfType(contactType string) *ProviderContact {
	if p == nil {
		return nil
	}
	for i := range p.Contacts {
		if p.Contacts[i].ContactType == contactType {
			return &p.Contacts[i]
		}
	}
	return nil
}

// VerificationID returns the external id recorded for the given authority,
// or "" when the provider carries no such verification.
func (p *Provider) VerificationID(authority string) string {
	for _, v := range p.Verifications {
		if v.Authority == authority {
			return v.ID
		}
	}
	return ""
}

// PointInTimeProvider is a Provider snapshot extended with capture metadata.
// Snapshots are immutable once written; promotion to or from "current" is a
// new write plus a flag flip on the superseded row, never an in-place edit.
type PointInTimeProvider struct {
	Provider

	// PointInTime is the date (day granularity, UTC) this snapshot was
	// captured as valid-of.
	PointInTime time.Time `json:"point_in_time"`

	// IsCurrent marks the authoritative snapshot for this UKPRN. At most one
	// snapshot per UKPRN may carry this flag at any moment.
	IsCurrent bool `json:"is_current"`
}

// NewPointInTimeProvider widens a Provider into a point-in-time snapshot.
// The point in time is truncated to day granularity in UTC and the snapshot
// starts out non-current.
func NewPointInTimeProvider(p Provider, pointInTime time.Time) *PointInTimeProvider {
	return &PointInTimeProvider{
		Provider:    p,
		PointInTime: DayUTC(pointInTime),
	}
}

// DayUTC truncates t to midnight UTC of the same calendar day.
func DayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StagingEpoch returns the earliest staging date the retention sweep will
// ever consider, and the default retention watermark before any sweep has
// run.
func StagingEpoch() time.Time {
	return time.Date(2019, time.September, 1, 0, 0, 0, 0, time.UTC)
}
