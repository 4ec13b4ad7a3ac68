package domain

import "time"

// SameProvider reports whether two provider records are equivalent for
// change-detection purposes. It compares the identifying and descriptive
// fields plus the legal and primary contacts; anything else (verification
// cross-references, contact timestamps) is ignored so that upstream noise
// does not trigger spurious snapshot updates.
func SameProvider(a, b *Provider) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.UKPRN != b.UKPRN ||
		a.ProviderName != b.ProviderName ||
		a.AccessibleProviderName != b.AccessibleProviderName ||
		a.ProviderStatus != b.ProviderStatus {
		return false
	}
	if !sameTime(a.ProviderVerificationDate, b.ProviderVerificationDate) {
		return false
	}
	if !sameTime(a.ExpiryDate, b.ExpiryDate) {
		return false
	}
	if !sameContact(a.ContactOfType(ContactTypeLegal), b.ContactOfType(ContactTypeLegal)) {
		return false
	}
	return sameContact(a.ContactOfType(ContactTypePrimary), b.ContactOfType(ContactTypePrimary))
}

func sameContact(a, b *ProviderContact) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ContactRole != b.ContactRole ||
		a.Telephone1 != b.Telephone1 ||
		a.Telephone2 != b.Telephone2 ||
		a.Fax != b.Fax ||
		a.WebsiteAddress != b.WebsiteAddress ||
		a.Email != b.Email {
		return false
	}
	if !sameAddress(a.Address, b.Address) {
		return false
	}
	return samePerson(a.PersonalDetails, b.PersonalDetails)
}

func sameAddress(a, b *Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Line1 == b.Line1 &&
		a.Line2 == b.Line2 &&
		a.Line3 == b.Line3 &&
		a.Line4 == b.Line4 &&
		a.Town == b.Town &&
		a.County == b.County &&
		a.Postcode == b.Postcode
}

func samePerson(a, b *PersonName) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Title == b.Title &&
		a.GivenName == b.GivenName &&
		a.FamilyName == b.FamilyName &&
		a.Suffix == b.Suffix &&
		a.RequestedName == b.RequestedName
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
