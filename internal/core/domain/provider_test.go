package domain

import (
	"testing"
	"time"
)

func TestNewPointInTimeProvider(t *testing.T) {
	p := baseProvider()
	captured := time.Date(2025, 6, 15, 13, 45, 12, 0, time.FixedZone("BST", 3600))

	snap := NewPointInTimeProvider(p, captured)
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !snap.PointInTime.Equal(want) {
		t.Errorf("point in time should truncate to UTC day, got %v", snap.PointInTime)
	}
	if snap.IsCurrent {
		t.Error("new snapshots should start non-current")
	}
	if snap.UKPRN != p.UKPRN {
		t.Errorf("snapshot should carry the provider, got ukprn %d", snap.UKPRN)
	}
}

func TestDayUTCCrossesMidnight(t *testing.T) {
	// 23:30 UTC-5 is 04:30 next day in UTC
	ny := time.FixedZone("EST", -5*3600)
	got := DayUTC(time.Date(2025, 1, 1, 23, 30, 0, 0, ny))
	want := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DayUTC = %v, want %v", got, want)
	}
}

func TestVerificationID(t *testing.T) {
	p := baseProvider()
	p.Verifications = []VerificationDetail{
		{Authority: AuthorityCompaniesHouse, ID: "01234567"},
		{Authority: AuthorityCharityCommission, ID: "999999"},
	}
	if got := p.VerificationID(AuthorityCharityCommission); got != "999999" {
		t.Errorf("VerificationID = %q", got)
	}
	if got := p.VerificationID(AuthorityDfENumber); got != "" {
		t.Errorf("missing authority should return empty, got %q", got)
	}
}
