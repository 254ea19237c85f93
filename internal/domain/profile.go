package domain

import "time"

// MinimumScanAge is the youngest age a subscriber may start a scan at.
const MinimumScanAge = 13

// ScanProfile is the personal information a provider searches brokers for.
type ScanProfile struct {
	FirstName   string    `json:"firstName" validate:"required"`
	MiddleName  string    `json:"middleName,omitempty"`
	LastName    string    `json:"lastName" validate:"required"`
	NameSuffix  string    `json:"nameSuffix,omitempty"`
	City        string    `json:"city" validate:"required"`
	State       string    `json:"state" validate:"required,len=2,alpha"`
	DateOfBirth time.Time `json:"dateOfBirth" validate:"required"`
}

// MeetsAgeRequirement reports whether the profile holder was at least
// MinimumScanAge years old at now.
func (p ScanProfile) MeetsAgeRequirement(now time.Time) bool {
	cutoff := now.AddDate(-MinimumScanAge, 0, 0)
	return !p.DateOfBirth.After(cutoff)
}
