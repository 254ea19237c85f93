// Package brokerscan adapts the newer broker-scan provider. Subscribers are
// keyed by a customer id string and removal progress is reported as
// submitted/confirmed/verified timestamps.
package brokerscan

import (
	"context"
	"net/http"
	"net/url"

	"exposurewatch/internal/adapters/apiclient"
	"exposurewatch/internal/domain"
	"exposurewatch/internal/ports"
)

type Client struct {
	api *apiclient.Client
}

var (
	_ ports.ExposureSource = (*Client)(nil)
	_ ports.ScanCreator    = (*Client)(nil)
	_ ports.BrokerCatalog  = (*Client)(nil)
)

func New(cfg apiclient.Config) (*Client, error) {
	cfg.Provider = string(domain.ProviderBrokerScan)
	cfg.Auth = apiclient.BearerAuth
	api, err := apiclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

func (c *Client) Provider() domain.Provider { return domain.ProviderBrokerScan }

func (c *Client) ListScans(ctx context.Context, key domain.ProviderKey) ([]domain.Scan, error) {
	var raw []scanPayload
	err := c.api.Do(ctx, apiclient.Request{
		Endpoint: "list_scans",
		Method:   http.MethodGet,
		Path:     "v1/customers/" + url.PathEscape(key.Value) + "/scans",
	}, &raw)
	if err != nil {
		return nil, err
	}
	scans := make([]domain.Scan, 0, len(raw))
	for _, p := range raw {
		s, err := p.normalize(key.Value)
		if err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}
	return scans, nil
}

func (c *Client) GetScan(ctx context.Context, key domain.ProviderKey, scanID string) (domain.Scan, error) {
	var raw scanPayload
	err := c.api.Do(ctx, apiclient.Request{
		Endpoint: "get_scan",
		Method:   http.MethodGet,
		Path:     "v1/scans/" + url.PathEscape(scanID),
	}, &raw)
	if err != nil {
		return domain.Scan{}, err
	}
	return raw.normalize(key.Value)
}

// ListRecords returns every record the provider holds for the customer;
// scanIDs are not needed by this provider.
func (c *Client) ListRecords(ctx context.Context, key domain.ProviderKey, _ []string) ([]domain.ScanRecord, error) {
	var raw []recordPayload
	err := c.api.Do(ctx, apiclient.Request{
		Endpoint: "list_records",
		Method:   http.MethodGet,
		Path:     "v1/customers/" + url.PathEscape(key.Value) + "/records",
	}, &raw)
	if err != nil {
		return nil, err
	}
	records := make([]domain.ScanRecord, 0, len(raw))
	for _, p := range raw {
		records = append(records, p.normalize(key.Value))
	}
	return records, nil
}

func (c *Client) CreateScan(ctx context.Context, key domain.ProviderKey, profile domain.ScanProfile) (domain.Scan, error) {
	var raw scanPayload
	err := c.api.Do(ctx, apiclient.Request{
		Endpoint: "create_scan",
		Method:   http.MethodPost,
		Path:     "v1/scans",
		Body: createScanRequest{
			CustomerID: key.Value,
			Profile:    newProfilePayload(profile),
		},
	}, &raw)
	if err != nil {
		return domain.Scan{}, err
	}
	return raw.normalize(key.Value)
}

func (c *Client) ListBrokers(ctx context.Context) ([]domain.Broker, error) {
	var raw []brokerPayload
	err := c.api.Do(ctx, apiclient.Request{
		Endpoint: "list_brokers",
		Method:   http.MethodGet,
		Path:     "v1/brokers/",
		Query: url.Values{
			"includeIcons":          {"false"},
			"includeRequiredFields": {"false"},
		},
	}, &raw)
	if err != nil {
		return nil, err
	}
	brokers := make([]domain.Broker, 0, len(raw))
	for _, p := range raw {
		brokers = append(brokers, p.normalize())
	}
	return brokers, nil
}
