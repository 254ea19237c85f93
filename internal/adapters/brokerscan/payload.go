package brokerscan

import (
	"fmt"
	"strings"
	"time"

	"exposurewatch/internal/adapters/apiclient"
	"exposurewatch/internal/domain"
)

type scanPayload struct {
	ID           apiclient.FlexString `json:"id"`
	CustomerID   apiclient.FlexString `json:"customerId"`
	Status       string               `json:"status"`
	EnrollmentID *string              `json:"enrollmentId"`
	ScanType     string               `json:"scanType"`
	BrokerCount  int                  `json:"brokerCount"`
	CreatedAt    time.Time            `json:"createdAt"`
	ModifiedAt   time.Time            `json:"modifiedAt"`
}

func (p scanPayload) normalize(customerID string) (domain.Scan, error) {
	status := domain.ScanStatus(p.Status)
	switch status {
	case domain.ScanCreated, domain.ScanQueued, domain.ScanActive, domain.ScanDone:
	default:
		return domain.Scan{}, fmt.Errorf("brokerscan: scan %s: unknown status %q", p.ID, p.Status)
	}
	// Enrollment scans are the provider's recurring monitoring runs.
	reason := domain.ReasonManual
	if p.EnrollmentID != nil && *p.EnrollmentID != "" {
		reason = domain.ReasonMonitoring
	}
	if p.CustomerID != "" {
		customerID = p.CustomerID.String()
	}
	modified := p.ModifiedAt
	if modified.IsZero() {
		modified = p.CreatedAt
	}
	return domain.Scan{
		Provider:    domain.ProviderBrokerScan,
		ProviderKey: customerID,
		RemoteID:    p.ID.String(),
		Status:      status,
		Reason:      reason,
		ScanType:    p.ScanType,
		BrokerCount: p.BrokerCount,
		CreatedAt:   p.CreatedAt.UTC(),
		ModifiedAt:  modified.UTC(),
	}, nil
}

type recordPayload struct {
	ID             apiclient.FlexString `json:"id"`
	ScanID         apiclient.FlexString `json:"scanId"`
	BrokerID       string               `json:"brokerId"`
	CustomerID     string               `json:"customerId"`
	Score          int                  `json:"score"`
	CreatedAt      time.Time            `json:"createdAt"`
	SubmittedAt    *time.Time           `json:"submittedAt"`
	ConfirmedAt    *time.Time           `json:"confirmedAt"`
	VerifiedAt     *time.Time           `json:"verifiedAt"`
	ModifiedAt     time.Time            `json:"modifiedAt"`
	Age            apiclient.FlexString `json:"age"`
	Addresses      []string             `json:"addresses"`
	FullName       string               `json:"fullName"`
	Relatives      []string             `json:"relatives"`
	PhoneNumbers   []string             `json:"phoneNumbers"`
	EmailAddresses []string             `json:"emailAddresses"`
	RecordURL      string               `json:"recordUrl"`
}

func (p recordPayload) normalize(customerID string) domain.ScanRecord {
	if p.CustomerID != "" {
		customerID = p.CustomerID
	}
	modified := p.ModifiedAt
	if modified.IsZero() {
		modified = p.CreatedAt
	}
	return domain.ScanRecord{
		Provider:       domain.ProviderBrokerScan,
		ProviderKey:    customerID,
		RemoteID:       p.ID.String(),
		ScanID:         p.ScanID.String(),
		BrokerID:       p.BrokerID,
		Score:          p.Score,
		Status:         domain.RemovalStatusFromTimestamps(p.SubmittedAt, p.ConfirmedAt, p.VerifiedAt),
		CreatedAt:      p.CreatedAt.UTC(),
		SubmittedAt:    utc(p.SubmittedAt),
		ConfirmedAt:    utc(p.ConfirmedAt),
		VerifiedAt:     utc(p.VerifiedAt),
		ModifiedAt:     modified.UTC(),
		FullName:       strings.TrimSpace(p.FullName),
		Age:            p.Age.String(),
		Addresses:      nonEmpty(p.Addresses),
		Relatives:      nonEmpty(p.Relatives),
		EmailAddresses: nonEmpty(p.EmailAddresses),
		PhoneNumbers:   nonEmpty(p.PhoneNumbers),
		RecordURL:      p.RecordURL,
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type brokerPayload struct {
	ID                           string    `json:"id"`
	Name                         string    `json:"name"`
	URL                          string    `json:"url"`
	Enabled                      bool      `json:"enabled"`
	EstimatedDaysToRemoveRecords int       `json:"estimatedDaysToRemoveRecords"`
	BrokerType                   string    `json:"brokerType"`
	ActiveAt                     time.Time `json:"activeAt"`
}

func (p brokerPayload) normalize() domain.Broker {
	return domain.Broker{
		Provider:      domain.ProviderBrokerScan,
		BrokerID:      p.ID,
		Name:          p.Name,
		URL:           p.URL,
		Enabled:       p.Enabled,
		EstimatedDays: p.EstimatedDaysToRemoveRecords,
		BrokerType:    p.BrokerType,
	}
}

type profileName struct {
	First  string `json:"first"`
	Middle string `json:"middle,omitempty"`
	Last   string `json:"last"`
	Suffix string `json:"suffix,omitempty"`
}

type profileAddress struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	Current bool   `json:"current"`
}

type profilePayload struct {
	BirthYear  string           `json:"birthYear,omitempty"`
	BirthMonth string           `json:"birthMonth,omitempty"`
	Name       profileName      `json:"name"`
	Addresses  []profileAddress `json:"addresses"`
}

type createScanRequest struct {
	CustomerID string         `json:"customerId"`
	Profile    profilePayload `json:"profile"`
}

func newProfilePayload(p domain.ScanProfile) profilePayload {
	out := profilePayload{
		Name: profileName{
			First:  p.FirstName,
			Middle: p.MiddleName,
			Last:   p.LastName,
			Suffix: p.NameSuffix,
		},
		Addresses: []profileAddress{{
			City:    p.City,
			State:   strings.ToUpper(p.State),
			Country: "US",
			Current: true,
		}},
	}
	if !p.DateOfBirth.IsZero() {
		out.BirthYear = fmt.Sprintf("%04d", p.DateOfBirth.Year())
		out.BirthMonth = fmt.Sprintf("%d", int(p.DateOfBirth.Month()))
	}
	return out
}
