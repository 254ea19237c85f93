package legacyscan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"exposurewatch/internal/adapters/apiclient"
	"exposurewatch/internal/domain"
)

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type listScansResponse struct {
	Data []scanPayload `json:"data"`
	Meta pageMeta      `json:"meta"`
}

type scanPayload struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profile_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p scanPayload) normalize() (domain.Scan, error) {
	status := domain.ScanStatus(p.Status)
	if status != domain.ScanInProgress && status != domain.ScanFinished {
		return domain.Scan{}, fmt.Errorf("legacyscan: scan %d: unknown status %q", p.ID, p.Status)
	}
	reason, err := normalizeReason(p.Reason)
	if err != nil {
		return domain.Scan{}, fmt.Errorf("legacyscan: scan %d: %w", p.ID, err)
	}
	modified := p.UpdatedAt
	if modified.IsZero() {
		modified = p.CreatedAt
	}
	return domain.Scan{
		Provider:    domain.ProviderLegacyScan,
		ProviderKey: strconv.FormatInt(p.ProfileID, 10),
		RemoteID:    strconv.FormatInt(p.ID, 10),
		Status:      status,
		Reason:      reason,
		CreatedAt:   p.CreatedAt.UTC(),
		ModifiedAt:  modified.UTC(),
	}, nil
}

func normalizeReason(raw string) (domain.ScanReason, error) {
	switch raw {
	case "initial":
		return domain.ReasonOnboarding, nil
	case "manual":
		return domain.ReasonManual, nil
	case "monitoring":
		return domain.ReasonMonitoring, nil
	}
	return "", fmt.Errorf("unknown scan reason %q", raw)
}

type listResultsResponse struct {
	Data []resultPayload `json:"data"`
	Meta pageMeta        `json:"meta"`
}

type addressPayload struct {
	City   string `json:"city"`
	State  string `json:"state"`
	Street string `json:"street"`
	Zip    string `json:"zip"`
}

func (a addressPayload) String() string {
	var parts []string
	for _, s := range []string{a.Street, a.City} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	tail := strings.TrimSpace(a.State + " " + a.Zip)
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

type resultPayload struct {
	ID           int64                `json:"id"`
	ProfileID    int64                `json:"profile_id"`
	ScanID       int64                `json:"scan_id"`
	Status       string               `json:"status"`
	FirstName    string               `json:"first_name"`
	MiddleName   string               `json:"middle_name"`
	LastName     string               `json:"last_name"`
	Age          apiclient.FlexString `json:"age"`
	Addresses    []addressPayload     `json:"addresses"`
	Phones       []string             `json:"phones"`
	Emails       []string             `json:"emails"`
	Relatives    []string             `json:"relatives"`
	Link         string               `json:"link"`
	DataBroker   string               `json:"data_broker"`
	DataBrokerID int64                `json:"data_broker_id"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (p resultPayload) normalize() (domain.ScanRecord, error) {
	status := domain.RemovalStatus(p.Status)
	switch status {
	case domain.RemovalNew, domain.RemovalOptOutInProgress,
		domain.RemovalWaitingForVerification, domain.RemovalRemoved:
	default:
		return domain.ScanRecord{}, fmt.Errorf("legacyscan: result %d: unknown status %q", p.ID, p.Status)
	}

	addresses := make([]string, 0, len(p.Addresses))
	for _, a := range p.Addresses {
		if s := a.String(); s != "" {
			addresses = append(addresses, s)
		}
	}
	modified := p.UpdatedAt
	if modified.IsZero() {
		modified = p.CreatedAt
	}

	return domain.ScanRecord{
		Provider:       domain.ProviderLegacyScan,
		ProviderKey:    strconv.FormatInt(p.ProfileID, 10),
		RemoteID:       strconv.FormatInt(p.ID, 10),
		ScanID:         strconv.FormatInt(p.ScanID, 10),
		BrokerID:       strconv.FormatInt(p.DataBrokerID, 10),
		BrokerName:     p.DataBroker,
		Status:         status,
		CreatedAt:      p.CreatedAt.UTC(),
		ModifiedAt:     modified.UTC(),
		FullName:       joinNonEmpty(p.FirstName, p.MiddleName, p.LastName),
		Age:            p.Age.String(),
		Addresses:      addresses,
		Relatives:      nonNil(p.Relatives),
		EmailAddresses: nonNil(p.Emails),
		PhoneNumbers:   nonNil(p.Phones),
		RecordURL:      p.Link,
	}, nil
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
