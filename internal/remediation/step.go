// Package remediation picks the single next guided step for a subscriber.
package remediation

import (
	"slices"
	"strings"

	"exposurewatch/internal/domain"
)

// Destination keys the view a step routes to.
type Destination string

const (
	DestPremiumWelcome     Destination = "premium-welcome"
	DestFreeScanOnboarding Destination = "free-scan-onboarding"
	DestScanInProgress     Destination = "scan-in-progress"
	DestBrokerListings     Destination = "broker-listings"
	DestBreachRemediation  Destination = "breach-remediation"
	DestAllClear           Destination = "all-clear"
)

// BreachFocus is the breach category to address first.
type BreachFocus string

const (
	FocusHighRisk                BreachFocus = "high-risk"
	FocusLeakedPasswords         BreachFocus = "leaked-passwords"
	FocusSecurityRecommendations BreachFocus = "security-recommendations"
	FocusGeneral                 BreachFocus = "general"
)

// FreeScanOffer says what the all-clear view may offer.
type FreeScanOffer string

const (
	OfferFreeScan FreeScanOffer = "free-scan"
	OfferWaitlist FreeScanOffer = "waitlist"
	OfferNone     FreeScanOffer = "none"
)

// FreeScanCountry is the only country broker scans are offered in.
const FreeScanCountry = "us"

// ScanState is the state of a subscriber's most recent scan.
type ScanState uint8

const (
	ScanAbsent ScanState = iota
	ScanRunning
	ScanComplete
)

// ScanStateOf reduces the latest scan, if any, to a ScanState.
func ScanStateOf(latest *domain.Scan) ScanState {
	switch {
	case latest == nil:
		return ScanAbsent
	case latest.Status.Running():
		return ScanRunning
	default:
		return ScanComplete
	}
}

// Input bundles everything the decision depends on. Callers compute it
// fresh per request.
type Input struct {
	CountryCode     string
	Tier            domain.Tier
	PremiumEligible bool
	Scan            ScanState

	// UnresolvedBrokerListings counts action-needed broker listings.
	UnresolvedBrokerListings int
	Breaches                 []domain.BreachRecord
	HasExposures             bool

	// TotalScans is the number of scans performed across all subscribers,
	// or -1 when unknown.
	TotalScans int
}

// FreeScanEligible reports whether the subscriber may start a free scan.
func (in Input) FreeScanEligible() bool {
	return strings.EqualFold(in.CountryCode, FreeScanCountry) && in.Scan == ScanAbsent
}

// Policy holds the deployment constants the decision reads.
type Policy struct {
	MaxScansThreshold int
	BrokerCoverage    int
}

// DefaultPolicy matches the provider contract limits.
var DefaultPolicy = Policy{MaxScansThreshold: 35000, BrokerCoverage: 190}

// Step is one routing decision plus the parameters its view needs.
type Step struct {
	Destination Destination `json:"destination"`

	Count          int           `json:"count,omitempty"`
	Focus          BreachFocus   `json:"focus,omitempty"`
	FreeScanOffer  FreeScanOffer `json:"freeScanOffer,omitempty"`
	BrokerCoverage int           `json:"brokerCoverage,omitempty"`
	HasExposures   bool          `json:"hasExposures,omitempty"`
}

// Next returns the next step. Rules are checked in order and the first
// match wins; the last rule always matches.
func Next(in Input, p Policy) Step {
	offer := freeScanOffer(in, p)

	if in.Scan == ScanAbsent && in.PremiumEligible && in.Tier != domain.TierPremium {
		return Step{Destination: DestPremiumWelcome}
	}
	if offer == OfferFreeScan {
		return Step{Destination: DestFreeScanOnboarding, BrokerCoverage: p.BrokerCoverage}
	}
	if in.Scan == ScanRunning {
		return Step{Destination: DestScanInProgress}
	}
	if in.UnresolvedBrokerListings > 0 {
		return Step{Destination: DestBrokerListings, Count: in.UnresolvedBrokerListings}
	}
	if unresolved := unresolvedBreaches(in.Breaches); len(unresolved) > 0 {
		return Step{
			Destination: DestBreachRemediation,
			Count:       len(unresolved),
			Focus:       focusFor(unresolved),
		}
	}
	return Step{
		Destination:    DestAllClear,
		FreeScanOffer:  offer,
		BrokerCoverage: p.BrokerCoverage,
		HasExposures:   in.HasExposures,
	}
}

func freeScanOffer(in Input, p Policy) FreeScanOffer {
	if !in.FreeScanEligible() {
		return OfferNone
	}
	if in.TotalScans < 0 || in.TotalScans < p.MaxScansThreshold {
		return OfferFreeScan
	}
	return OfferWaitlist
}

func unresolvedBreaches(breaches []domain.BreachRecord) []domain.BreachRecord {
	var out []domain.BreachRecord
	for _, b := range breaches {
		if !b.Resolved {
			out = append(out, b)
		}
	}
	return out
}

var (
	highRiskClasses = []domain.DataClass{
		domain.DataSSNs, domain.DataCreditCards, domain.DataBankAccountNumbers, domain.DataPINs,
	}
	passwordClasses = []domain.DataClass{domain.DataPasswords, domain.DataSecurityQuestions}
	securityClasses = []domain.DataClass{
		domain.DataPhoneNumbers, domain.DataEmailAddresses, domain.DataIPAddresses,
	}
)

func focusFor(breaches []domain.BreachRecord) BreachFocus {
	switch {
	case anyClass(breaches, highRiskClasses):
		return FocusHighRisk
	case anyClass(breaches, passwordClasses):
		return FocusLeakedPasswords
	case anyClass(breaches, securityClasses):
		return FocusSecurityRecommendations
	}
	return FocusGeneral
}

func anyClass(breaches []domain.BreachRecord, classes []domain.DataClass) bool {
	for _, b := range breaches {
		for _, c := range b.DataClasses {
			if slices.Contains(classes, c) {
				return true
			}
		}
	}
	return false
}
