package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Core domain models used internally. Provider payloads are normalized into
// these at the adapter boundary; nothing past internal/adapters sees a
// provider-specific field.

// Provider names an external broker-scan provider.
type Provider string

const (
	// ProviderLegacyScan is the older provider, keyed by a numeric profile id.
	ProviderLegacyScan Provider = "legacyscan"
	// ProviderBrokerScan is the newer provider, keyed by a customer id string.
	ProviderBrokerScan Provider = "brokerscan"
)

// Providers lists every known provider in sync order.
var Providers = []Provider{ProviderBrokerScan, ProviderLegacyScan}

func (p Provider) Valid() bool {
	return p == ProviderLegacyScan || p == ProviderBrokerScan
}

// ParseProvider validates a provider name from an untrusted source.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}

// ProviderKey identifies one subscriber at one provider.
type ProviderKey struct {
	Provider Provider
	Value    string
}

func (k ProviderKey) IsZero() bool { return k.Value == "" }

func (k ProviderKey) String() string { return string(k.Provider) + ":" + k.Value }

// ProfileID returns the numeric form used by the legacy provider.
func (k ProviderKey) ProfileID() (int64, error) {
	id, err := strconv.ParseInt(k.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("profile id %q: %w", k.Value, err)
	}
	return id, nil
}

// LegacyProfileKey builds the key for a legacy provider profile.
func LegacyProfileKey(profileID int64) ProviderKey {
	return ProviderKey{Provider: ProviderLegacyScan, Value: strconv.FormatInt(profileID, 10)}
}

// BrokerCustomerKey builds the key for a newer provider customer.
func BrokerCustomerKey(customerID string) ProviderKey {
	return ProviderKey{Provider: ProviderBrokerScan, Value: customerID}
}

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

type Subscriber struct {
	ID               int64
	Email            string
	Tier             Tier
	LegacyProfileID  *int64
	BrokerCustomerID *string
	CreatedAt        time.Time
}

func (s Subscriber) IsPremium() bool { return s.Tier == TierPremium }

// ProviderKeys returns the provider identifiers the subscriber holds, at
// most one per provider.
func (s Subscriber) ProviderKeys() []ProviderKey {
	var keys []ProviderKey
	if s.BrokerCustomerID != nil && *s.BrokerCustomerID != "" {
		keys = append(keys, BrokerCustomerKey(*s.BrokerCustomerID))
	}
	if s.LegacyProfileID != nil {
		keys = append(keys, LegacyProfileKey(*s.LegacyProfileID))
	}
	return keys
}

// ScanStatus is the provider-reported status of a scan job.
type ScanStatus string

const (
	ScanCreated ScanStatus = "created"
	ScanQueued  ScanStatus = "queued"
	ScanActive  ScanStatus = "active"
	ScanDone    ScanStatus = "done"

	// Legacy provider statuses.
	ScanInProgress ScanStatus = "in_progress"
	ScanFinished   ScanStatus = "finished"
)

// Running reports whether the provider is still working on the scan.
func (s ScanStatus) Running() bool {
	switch s {
	case ScanCreated, ScanQueued, ScanActive, ScanInProgress:
		return true
	}
	return false
}

// HasResults reports whether records may be fetched for a scan in this status.
func (s ScanStatus) HasResults() bool {
	return s == ScanActive || s == ScanDone || s == ScanFinished
}

type ScanReason string

const (
	ReasonManual     ScanReason = "manual"
	ReasonMonitoring ScanReason = "monitoring"
	ReasonOnboarding ScanReason = "onboarding"
)

type Scan struct {
	Provider    Provider
	ProviderKey string
	RemoteID    string
	Status      ScanStatus
	Reason      ScanReason
	ScanType    string
	BrokerCount int
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// RemovalStatus is the normalized per-record removal state. The legacy
// provider reports it directly; for the newer provider it is derived from
// the submitted/confirmed/verified timestamps.
type RemovalStatus string

const (
	RemovalNew                    RemovalStatus = "new"
	RemovalOptOutInProgress       RemovalStatus = "optout_in_progress"
	RemovalWaitingForVerification RemovalStatus = "waiting_for_verification"
	RemovalRemoved                RemovalStatus = "removed"
)

// RemovalStatusFromTimestamps derives the removal status for providers that
// only report progress timestamps.
func RemovalStatusFromTimestamps(submitted, confirmed, verified *time.Time) RemovalStatus {
	switch {
	case verified != nil:
		return RemovalRemoved
	case confirmed != nil:
		return RemovalWaitingForVerification
	case submitted != nil:
		return RemovalOptOutInProgress
	default:
		return RemovalNew
	}
}

// ScanRecord is one broker listing found by a scan.
type ScanRecord struct {
	Provider    Provider
	ProviderKey string
	RemoteID    string
	ScanID      string
	BrokerID    string
	BrokerName  string
	BrokerURL   string
	Score       int
	Status      RemovalStatus

	CreatedAt   time.Time
	SubmittedAt *time.Time
	ConfirmedAt *time.Time
	VerifiedAt  *time.Time
	ModifiedAt  time.Time

	FullName       string
	Age            string
	Addresses      []string
	Relatives      []string
	EmailAddresses []string
	PhoneNumbers   []string
	RecordURL      string

	// ManuallyResolved is joined in from the resolutions table on read.
	ManuallyResolved bool
}

// DataClass names one kind of compromised personal data.
type DataClass string

const (
	DataEmailAddresses     DataClass = "email-addresses"
	DataPhoneNumbers       DataClass = "phone-numbers"
	DataPhysicalAddresses  DataClass = "physical-addresses"
	DataFamilyMembers      DataClass = "family-members-names"
	DataSSNs               DataClass = "social-security-numbers"
	DataIPAddresses        DataClass = "ip-addresses"
	DataPasswords          DataClass = "passwords"
	DataCreditCards        DataClass = "credit-cards"
	DataPINs               DataClass = "pins"
	DataSecurityQuestions  DataClass = "security-questions-and-answers"
	DataBankAccountNumbers DataClass = "bank-account-numbers"
)

type ResolutionReason string

const (
	ResolvedManually      ResolutionReason = "manual"
	ResolvedAutomatically ResolutionReason = "automatic"
)

// BreachRecord is one data breach a subscriber's email appeared in. It is
// read from the breach database and never written by this service.
type BreachRecord struct {
	ID               int64
	Name             string
	Domain           string
	AddedDate        time.Time
	Resolved         bool
	ResolutionReason ResolutionReason
	DataClasses      []DataClass
}

// Broker is one entry of a provider's broker catalog.
type Broker struct {
	Provider          Provider
	BrokerID          string
	Name              string
	URL               string
	RegistrableDomain string
	Enabled           bool
	EstimatedDays     int
	BrokerType        string
	UpdatedAt         time.Time
}
