package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/remediation"
)

// ErrInvalidProfile wraps every profile validation failure.
var ErrInvalidProfile = errors.New("invalid scan profile")

var validate = validator.New(validator.WithRequiredStructEnabled())

func newCustomerID() string { return uuid.NewString() }

// ValidateProfile checks required fields and the minimum age.
func ValidateProfile(p domain.ScanProfile, now func() time.Time) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("%w: invalid fields %s", ErrInvalidProfile, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("%w: invalid fields DateOfBirth", ErrInvalidProfile)
	}
	if !p.MeetsAgeRequirement(now()) {
		return fmt.Errorf("%w: must be at least %d years old", ErrInvalidProfile, domain.MinimumScanAge)
	}
	return nil
}

// Enroll starts the subscriber's free scan at the scan-creating provider
// and mirrors it with a sync cycle. Only subscribers in the free-scan
// country without any prior scan are eligible.
func (s *Service) Enroll(ctx context.Context, subscriberID int64, country string, profile domain.ScanProfile) (domain.Scan, error) {
	if s.creator == nil {
		return domain.Scan{}, fmt.Errorf("enroll: no provider can create scans")
	}
	if err := ValidateProfile(profile, s.now); err != nil {
		return domain.Scan{}, err
	}
	if !strings.EqualFold(country, remediation.FreeScanCountry) {
		return domain.Scan{}, fmt.Errorf("%w: free scans are not offered in %q", domain.ErrNotEligible, country)
	}

	sub, err := s.subscribers.Subscriber(ctx, subscriberID)
	if err != nil {
		return domain.Scan{}, err
	}
	for _, key := range sub.ProviderKeys() {
		_, found, err := s.scans.LatestScan(ctx, key)
		if err != nil {
			return domain.Scan{}, &StoreError{Key: key, Stage: "latest_scan", Err: err}
		}
		if found {
			return domain.Scan{}, fmt.Errorf("%w: subscriber already has a scan", domain.ErrNotEligible)
		}
	}

	customerID := ""
	if sub.BrokerCustomerID != nil {
		customerID = *sub.BrokerCustomerID
	}
	if customerID == "" {
		customerID, err = s.subscribers.AssignBrokerCustomerID(ctx, sub.ID, s.newID())
		if err != nil {
			return domain.Scan{}, fmt.Errorf("assign customer id: %w", err)
		}
	}
	key := domain.BrokerCustomerKey(customerID)

	scan, err := s.creator.CreateScan(ctx, key, profile)
	if err != nil {
		return domain.Scan{}, fmt.Errorf("create scan: %w", err)
	}
	s.log.Info().
		Int64("subscriber_id", sub.ID).
		Str("provider_key", customerID).
		Str("scan_id", scan.RemoteID).
		Msg("free scan created")

	if _, err := s.Sync(ctx, key); err != nil {
		return scan, err
	}
	return scan, nil
}
