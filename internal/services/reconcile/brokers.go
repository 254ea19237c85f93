package reconcile

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// SyncBrokers mirrors the provider's broker catalog and returns the number
// of rows inserted or changed.
func (s *Service) SyncBrokers(ctx context.Context) (int, error) {
	if s.catalog == nil {
		return 0, errors.New("sync brokers: no provider publishes a broker catalog")
	}
	brokers, err := s.catalog.ListBrokers(ctx)
	if err != nil {
		return 0, err
	}
	for i := range brokers {
		brokers[i].RegistrableDomain = RegistrableDomain(brokers[i].URL)
	}
	n, err := s.brokers.UpsertBrokers(ctx, brokers)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("brokers", len(brokers)).Int("changed", n).Msg("broker catalog synced")
	return n, nil
}

// RegistrableDomain reduces a broker URL to its eTLD+1. Bare hostnames
// without a scheme are accepted.
func RegistrableDomain(rawurl string) string {
	rawurl = strings.TrimSpace(rawurl)
	if rawurl == "" {
		return ""
	}
	if !strings.Contains(rawurl, "://") {
		rawurl = "https://" + rawurl
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}
